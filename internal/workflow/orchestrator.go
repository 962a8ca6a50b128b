package workflow

import (
	"context"
	"errors"
	"log/slog"

	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/requestcontext"
)

// DocumentFinalizer closes the loop back to the document once a run
// completes. It is called inside the caller's unit of work: approved selects
// the APPROVED status, anything else EFFECTIVE.
type DocumentFinalizer interface {
	FinalizeWorkflow(ctx context.Context, documentID id.DocumentID, approved bool) error
}

// Orchestrator instantiates workflow runs from templates and drives step
// progression. It never authorizes signers: that belongs to the signature
// gate, which calls Advance after it completes a step.
type Orchestrator struct {
	templates TemplateStore
	runs      RunStore
	finalizer DocumentFinalizer
	logger    *slog.Logger
	observer  RunObserver
}

// RunObserver receives run lifecycle notifications for counters.
type RunObserver interface {
	RunStarted()
	RunCompleted()
}

type OrchestratorOption func(*Orchestrator)

func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithRunObserver(observer RunObserver) OrchestratorOption {
	return func(o *Orchestrator) { o.observer = observer }
}

func NewOrchestrator(templates TemplateStore, runs RunStore, finalizer DocumentFinalizer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		templates: templates,
		runs:      runs,
		finalizer: finalizer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InstantiateRun copies the template's step shape into a fresh PENDING run.
// It runs inside the caller's unit of work so the run commits or rolls back
// with the triggering document creation.
func (o *Orchestrator) InstantiateRun(ctx context.Context, documentID id.DocumentID, templateID id.TemplateID) (id.RunID, error) {
	template, err := o.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.RunID{}, dErrors.New(dErrors.CodeNotFound, "workflow template not found")
		}
		return id.RunID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow template")
	}
	if len(template.Steps) == 0 {
		return id.RunID{}, dErrors.New(dErrors.CodeInvariantViolation, "workflow template has no steps")
	}

	run := &Run{
		ID:          id.NewRunID(),
		DocumentID:  documentID,
		TemplateID:  &templateID,
		Status:      StatusPending,
		CurrentStep: template.Steps[0].Order,
		StartedAt:   requestcontext.Now(ctx),
	}
	steps := make([]*Step, 0, len(template.Steps))
	for _, ts := range template.Steps {
		steps = append(steps, &Step{
			ID:       id.NewStepID(),
			RunID:    run.ID,
			Order:    ts.Order,
			Role:     ts.Role,
			StepType: ts.StepType,
			Status:   StatusPending,
		})
	}
	if err := o.runs.Create(ctx, run, steps); err != nil {
		return id.RunID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create workflow run")
	}

	if o.observer != nil {
		o.observer.RunStarted()
	}
	o.logger.InfoContext(ctx, "workflow run instantiated",
		slog.String("run_id", run.ID.String()),
		slog.String("document_id", documentID.String()),
		slog.Int("steps", len(steps)))
	return run.ID, nil
}

// Advance is called after a step has been marked COMPLETED, inside the same
// unit of work and with the run row already locked. It counts the remaining
// PENDING steps: zero completes the run and finalizes the document; otherwise
// the lowest-order PENDING step is promoted to IN_PROGRESS and becomes the
// run's current step. When no PENDING step exists but some remain open, the
// run is marked IN_PROGRESS without moving the current-step pointer.
func (o *Orchestrator) Advance(ctx context.Context, runID id.RunID, approved bool) (bool, error) {
	run, steps, err := o.runs.LoadRunWithSteps(ctx, runID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotFound, "workflow run not found")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow run")
	}

	pending := 0
	var next *Step
	for _, step := range steps {
		if step.Status != StatusPending {
			continue
		}
		pending++
		if next == nil || step.Order < next.Order {
			next = step
		}
	}

	if pending == 0 {
		now := requestcontext.Now(ctx)
		run.Status = StatusCompleted
		run.CompletedAt = &now
		if err := o.runs.UpdateRun(ctx, run); err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete workflow run")
		}
		if err := o.finalizer.FinalizeWorkflow(ctx, run.DocumentID, approved); err != nil {
			return false, err
		}
		if o.observer != nil {
			o.observer.RunCompleted()
		}
		o.logger.InfoContext(ctx, "workflow run completed",
			slog.String("run_id", run.ID.String()),
			slog.String("document_id", run.DocumentID.String()))
		return true, nil
	}

	run.Status = StatusInProgress
	if next != nil {
		if err := o.runs.MarkStepInProgress(ctx, next.ID); err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote next step")
		}
		run.CurrentStep = next.Order
	}
	if err := o.runs.UpdateRun(ctx, run); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update workflow run")
	}
	return false, nil
}

// RunsForDocument lists a document's runs with their steps, most recent
// first.
func (o *Orchestrator) RunsForDocument(ctx context.Context, documentID id.DocumentID) ([]*Run, map[id.RunID][]*Step, error) {
	runs, err := o.runs.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list workflow runs")
	}
	stepsByRun := make(map[id.RunID][]*Step, len(runs))
	for _, run := range runs {
		_, steps, err := o.runs.LoadRunWithSteps(ctx, run.ID)
		if err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow steps")
		}
		stepsByRun[run.ID] = steps
	}
	return runs, stepsByRun, nil
}
