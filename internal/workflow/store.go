package workflow

import (
	"context"
	"time"

	"doccontrol/internal/document"
	id "doccontrol/pkg/domain"
)

// TemplateStore persists workflow templates together with their ordered
// steps. FindByID returns steps ordered by step order.
type TemplateStore interface {
	Create(ctx context.Context, template *Template) error
	FindByID(ctx context.Context, templateID id.TemplateID) (*Template, error)
	List(ctx context.Context) ([]*Template, error)
	// ClearDefaultExcept unsets IsDefault on every template of the category
	// except keep, preserving at most one default per category.
	ClearDefaultExcept(ctx context.Context, category document.Category, keep id.TemplateID) error
}

// RunStore persists workflow runs and their steps. CompleteStep is a
// conditional write: it only succeeds while the step is not COMPLETED and not
// yet bound to a version, returning sentinel.ErrConflict otherwise. LockRun
// serializes step-completion decisions per run and must be called before any
// completion read inside a unit of work.
type RunStore interface {
	Create(ctx context.Context, run *Run, steps []*Step) error
	LoadRunWithSteps(ctx context.Context, runID id.RunID) (*Run, []*Step, error)
	ListByDocument(ctx context.Context, documentID id.DocumentID) ([]*Run, error)
	UpdateRun(ctx context.Context, run *Run) error
	LockRun(ctx context.Context, runID id.RunID) error
	FindStepByID(ctx context.Context, stepID id.StepID) (*Step, error)
	AssignStep(ctx context.Context, stepID id.StepID, assignee id.UserID) error
	CompleteStep(ctx context.Context, stepID id.StepID, versionID id.DocumentVersionID, comment string, completedAt time.Time) error
	MarkStepInProgress(ctx context.Context, stepID id.StepID) error
	CountPendingSteps(ctx context.Context, runID id.RunID) (int, error)
}
