// Package view builds read-only projections across the verticals: the full
// document aggregate consumed by the presentation layer and the dashboard
// summary. Nothing here mutates state.
package view

import (
	"context"
	"time"

	"doccontrol/internal/audit"
	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	"doccontrol/internal/signature"
	"doccontrol/internal/workflow"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

const recentEventLimit = 20

// upcoming revisions horizon for the dashboard
const revisionHorizon = 30 * 24 * time.Hour

type Service struct {
	documents    *document.Service
	orchestrator *workflow.Orchestrator
	signatures   signature.Store
	events       *audit.Service
}

func NewService(documents *document.Service, orchestrator *workflow.Orchestrator,
	signatures signature.Store, events *audit.Service) *Service {
	return &Service{
		documents:    documents,
		orchestrator: orchestrator,
		signatures:   signatures,
		events:       events,
	}
}

// RunWithSteps pairs a run with its ordered steps.
type RunWithSteps struct {
	Run   *workflow.Run
	Steps []*workflow.Step
}

// DocumentAggregate is everything the presentation layer needs to render one
// document: the record, its versions, signatures per version, workflow runs
// with steps and the most recent audit events.
type DocumentAggregate struct {
	Document   *document.Document
	Versions   []*document.Version
	Signatures []*signature.ElectronicSignature
	Runs       []RunWithSteps
	Events     []audit.Event
}

func (s *Service) GetDocument(ctx context.Context, documentID id.DocumentID) (*DocumentAggregate, error) {
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	versions, err := s.documents.ListVersions(ctx, documentID)
	if err != nil {
		return nil, err
	}

	aggregate := &DocumentAggregate{Document: doc, Versions: versions}
	for _, version := range versions {
		sigs, err := s.signatures.ListByVersion(ctx, version.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list signatures")
		}
		aggregate.Signatures = append(aggregate.Signatures, sigs...)
	}

	runs, stepsByRun, err := s.orchestrator.RunsForDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		aggregate.Runs = append(aggregate.Runs, RunWithSteps{Run: run, Steps: stepsByRun[run.ID]})
	}

	events, err := s.events.ListByDocument(ctx, documentID, recentEventLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	aggregate.Events = events
	return aggregate, nil
}

// Dashboard is the caller-specific summary screen.
type Dashboard struct {
	DocumentsByStatus map[document.Status]int
	TotalDocuments    int
	PendingSteps      int
	RecentEvents      int
	UpcomingRevisions []*document.Document
}

// GetDashboard counts documents by status, open workflow steps the caller
// could sign and documents whose next issue date falls inside the revision
// horizon.
func (s *Service) GetDashboard(ctx context.Context, actor id.UserID, role identity.Role) (*Dashboard, error) {
	docs, err := s.documents.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{
		DocumentsByStatus: make(map[document.Status]int),
		TotalDocuments:    len(docs),
	}
	horizon := time.Now().Add(revisionHorizon)
	for _, doc := range docs {
		dashboard.DocumentsByStatus[doc.Status]++
		if doc.NextIssueDate != nil && doc.NextIssueDate.Before(horizon) {
			dashboard.UpcomingRevisions = append(dashboard.UpcomingRevisions, doc)
		}

		_, stepsByRun, err := s.orchestrator.RunsForDocument(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		for _, steps := range stepsByRun {
			for _, step := range steps {
				if step.DocumentVersionID != nil {
					continue
				}
				if (step.Assignee != nil && *step.Assignee == actor) || step.Role == role {
					dashboard.PendingSteps++
				}
			}
		}
	}

	events, err := s.events.List(ctx, 50)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	dashboard.RecentEvents = len(events)
	return dashboard, nil
}
