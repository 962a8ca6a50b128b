package workflow

import (
	"time"

	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

// StepType classifies what a workflow step asks of its assignee.
type StepType string

const (
	StepReview       StepType = "REVIEW"
	StepApproval     StepType = "APPROVAL"
	StepNotification StepType = "NOTIFICATION"
)

var validStepTypes = map[StepType]struct{}{
	StepReview: {}, StepApproval: {}, StepNotification: {},
}

func ParseStepType(raw string) (StepType, error) {
	t := StepType(raw)
	if _, ok := validStepTypes[t]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown step type %q", raw)
	}
	return t, nil
}

// Status is shared by runs and steps. Steps only move forward:
// PENDING, IN_PROGRESS, COMPLETED, never back.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Template is the declarative shape of an approval workflow. It is immutable
// once referenced by a run: runs copy the step shape, they never point back.
type Template struct {
	ID        id.TemplateID
	Name      string
	Category  document.Category
	IsDefault bool
	Steps     []TemplateStep
	CreatedBy id.UserID
	CreatedAt time.Time
}

// TemplateStep declares one step of the template. RequireSignature and
// SLAHours are declarative policy: runtime steps do not retain or check them.
type TemplateStep struct {
	ID               id.TemplateStepID
	TemplateID       id.TemplateID
	Order            int
	Role             identity.Role
	StepType         StepType
	RequireSignature bool
	SLAHours         int
}

// Run is one instantiation of a template against a document. A document may
// accumulate several runs over its history, one per triggering event.
type Run struct {
	ID          id.RunID
	DocumentID  id.DocumentID
	TemplateID  *id.TemplateID
	Status      Status
	CurrentStep int
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Step is the runtime copy of a template step. DocumentVersionID == nil marks
// a step not yet signed against a version; it is the signal used to find an
// open step.
type Step struct {
	ID                id.StepID
	RunID             id.RunID
	Order             int
	Role              identity.Role
	StepType          StepType
	Status            Status
	Assignee          *id.UserID
	DocumentVersionID *id.DocumentVersionID
	Comments          string
	CompletedAt       *time.Time
}
