package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"doccontrol/internal/document"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
)

// InMemoryTemplateStore backs unit tests and the no-database wiring.
type InMemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[id.TemplateID]*Template
}

func NewInMemoryTemplateStore() *InMemoryTemplateStore {
	return &InMemoryTemplateStore{templates: make(map[id.TemplateID]*Template)}
}

func cloneTemplate(t *Template) *Template {
	clone := *t
	clone.Steps = append([]TemplateStep(nil), t.Steps...)
	return &clone
}

func (s *InMemoryTemplateStore) Create(_ context.Context, template *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates[template.ID] = cloneTemplate(template)
	return nil
}

func (s *InMemoryTemplateStore) FindByID(_ context.Context, templateID id.TemplateID) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	template, ok := s.templates[templateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneTemplate(template), nil
}

func (s *InMemoryTemplateStore) List(_ context.Context) ([]*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := make([]*Template, 0, len(s.templates))
	for _, t := range s.templates {
		templates = append(templates, cloneTemplate(t))
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

func (s *InMemoryTemplateStore) ClearDefaultExcept(_ context.Context, category document.Category, keep id.TemplateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.templates {
		if t.Category == category && t.ID != keep {
			t.IsDefault = false
		}
	}
	return nil
}

// InMemoryRunStore holds runs and steps. The serializing unit-of-work lock in
// storetx.InMemory provides the per-run ordering guarantee, so LockRun is a
// no-op here.
type InMemoryRunStore struct {
	mu    sync.RWMutex
	runs  map[id.RunID]*Run
	steps map[id.StepID]*Step
}

func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs:  make(map[id.RunID]*Run),
		steps: make(map[id.StepID]*Step),
	}
}

func (s *InMemoryRunStore) Create(_ context.Context, run *Run, steps []*Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runClone := *run
	s.runs[run.ID] = &runClone
	for _, step := range steps {
		stepClone := *step
		s.steps[step.ID] = &stepClone
	}
	return nil
}

func (s *InMemoryRunStore) LoadRunWithSteps(_ context.Context, runID id.RunID) (*Run, []*Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, nil, sentinel.ErrNotFound
	}
	runClone := *run

	var steps []*Step
	for _, step := range s.steps {
		if step.RunID == runID {
			stepClone := *step
			steps = append(steps, &stepClone)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	return &runClone, steps, nil
}

func (s *InMemoryRunStore) ListByDocument(_ context.Context, documentID id.DocumentID) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*Run
	for _, run := range s.runs {
		if run.DocumentID == documentID {
			clone := *run
			runs = append(runs, &clone)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs, nil
}

func (s *InMemoryRunStore) UpdateRun(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *run
	s.runs[run.ID] = &clone
	return nil
}

func (s *InMemoryRunStore) LockRun(_ context.Context, runID id.RunID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *InMemoryRunStore) FindStepByID(_ context.Context, stepID id.StepID) (*Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	step, ok := s.steps[stepID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *step
	return &clone, nil
}

func (s *InMemoryRunStore) AssignStep(_ context.Context, stepID id.StepID, assignee id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, ok := s.steps[stepID]
	if !ok {
		return sentinel.ErrNotFound
	}
	step.Assignee = &assignee
	return nil
}

func (s *InMemoryRunStore) CompleteStep(_ context.Context, stepID id.StepID, versionID id.DocumentVersionID, comment string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, ok := s.steps[stepID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if step.Status == StatusCompleted || step.DocumentVersionID != nil {
		return sentinel.ErrConflict
	}
	step.Status = StatusCompleted
	step.DocumentVersionID = &versionID
	step.Comments = comment
	step.CompletedAt = &completedAt
	return nil
}

func (s *InMemoryRunStore) MarkStepInProgress(_ context.Context, stepID id.StepID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, ok := s.steps[stepID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if step.Status == StatusPending {
		step.Status = StatusInProgress
	}
	return nil
}

func (s *InMemoryRunStore) CountPendingSteps(_ context.Context, runID id.RunID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, step := range s.steps {
		if step.RunID == runID && step.Status == StatusPending {
			count++
		}
	}
	return count, nil
}
