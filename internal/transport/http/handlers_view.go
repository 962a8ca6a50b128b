package http

import (
	"net/http"
	"time"

	"doccontrol/internal/audit"
	"doccontrol/internal/view"
	"doccontrol/internal/workflow"
	"doccontrol/pkg/platform/httputil"
)

type runResponse struct {
	ID          string         `json:"id"`
	DocumentID  string         `json:"documentId"`
	TemplateID  string         `json:"templateId,omitempty"`
	Status      string         `json:"status"`
	CurrentStep int            `json:"currentStep"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Steps       []stepResponse `json:"steps"`
}

type stepResponse struct {
	ID                string     `json:"id"`
	Order             int        `json:"order"`
	Role              string     `json:"role"`
	StepType          string     `json:"stepType"`
	Status            string     `json:"status"`
	Assignee          string     `json:"assignee,omitempty"`
	DocumentVersionID string     `json:"documentVersionId,omitempty"`
	Comments          string     `json:"comments,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

func toRunResponse(run *workflow.Run, steps []*workflow.Step) runResponse {
	resp := runResponse{
		ID:          run.ID.String(),
		DocumentID:  run.DocumentID.String(),
		Status:      string(run.Status),
		CurrentStep: run.CurrentStep,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
	if run.TemplateID != nil {
		resp.TemplateID = run.TemplateID.String()
	}
	for _, step := range steps {
		stepResp := stepResponse{
			ID:          step.ID.String(),
			Order:       step.Order,
			Role:        string(step.Role),
			StepType:    string(step.StepType),
			Status:      string(step.Status),
			Comments:    step.Comments,
			CompletedAt: step.CompletedAt,
		}
		if step.Assignee != nil {
			stepResp.Assignee = step.Assignee.String()
		}
		if step.DocumentVersionID != nil {
			stepResp.DocumentVersionID = step.DocumentVersionID.String()
		}
		resp.Steps = append(resp.Steps, stepResp)
	}
	return resp
}

type auditEventResponse struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actorId,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func toAuditEventResponse(event audit.Event) auditEventResponse {
	resp := auditEventResponse{
		ID:         event.ID.String(),
		Action:     string(event.Action),
		EntityType: string(event.EntityType),
		EntityID:   event.EntityID,
		Metadata:   event.Metadata,
		IPAddress:  event.IPAddress,
		CreatedAt:  event.CreatedAt,
	}
	if event.ActorID != nil {
		resp.ActorID = event.ActorID.String()
	}
	return resp
}

type aggregateResponse struct {
	Document   documentResponse     `json:"document"`
	Versions   []versionResponse    `json:"versions"`
	Signatures []signatureResponse  `json:"signatures"`
	Runs       []runResponse        `json:"workflowRuns"`
	Events     []auditEventResponse `json:"recentAuditEvents"`
}

func toAggregateResponse(aggregate *view.DocumentAggregate) aggregateResponse {
	resp := aggregateResponse{Document: toDocumentResponse(aggregate.Document)}
	for _, version := range aggregate.Versions {
		resp.Versions = append(resp.Versions, toVersionResponse(version))
	}
	for _, sig := range aggregate.Signatures {
		resp.Signatures = append(resp.Signatures, toSignatureResponse(sig))
	}
	for _, run := range aggregate.Runs {
		resp.Runs = append(resp.Runs, toRunResponse(run.Run, run.Steps))
	}
	for _, event := range aggregate.Events {
		resp.Events = append(resp.Events, toAuditEventResponse(event))
	}
	return resp
}

type dashboardResponse struct {
	DocumentsByStatus map[string]int     `json:"documentsByStatus"`
	TotalDocuments    int                `json:"totalDocuments"`
	PendingSteps      int                `json:"pendingSteps"`
	RecentEvents      int                `json:"recentEvents"`
	UpcomingRevisions []documentResponse `json:"upcomingRevisions"`
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	actor, role, err := actorFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	dashboard, err := h.deps.View.GetDashboard(r.Context(), actor, role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := dashboardResponse{
		DocumentsByStatus: make(map[string]int, len(dashboard.DocumentsByStatus)),
		TotalDocuments:    dashboard.TotalDocuments,
		PendingSteps:      dashboard.PendingSteps,
		RecentEvents:      dashboard.RecentEvents,
		UpcomingRevisions: make([]documentResponse, 0, len(dashboard.UpcomingRevisions)),
	}
	for status, count := range dashboard.DocumentsByStatus {
		resp.DocumentsByStatus[string(status)] = count
	}
	for _, doc := range dashboard.UpcomingRevisions {
		resp.UpcomingRevisions = append(resp.UpcomingRevisions, toDocumentResponse(doc))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
