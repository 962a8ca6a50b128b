package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"doccontrol/internal/audit"
	"doccontrol/internal/identity"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/platform/storetx"
)

type finalizerStub struct {
	calls    int
	lastDoc  id.DocumentID
	approved bool
}

func (f *finalizerStub) FinalizeWorkflow(_ context.Context, documentID id.DocumentID, approved bool) error {
	f.calls++
	f.lastDoc = documentID
	f.approved = approved
	return nil
}

type OrchestratorSuite struct {
	suite.Suite
	orch      *Orchestrator
	runs      *InMemoryRunStore
	templates *TemplateService
	finalizer *finalizerStub
	ctx       context.Context
	actor     id.UserID
}

func (s *OrchestratorSuite) SetupTest() {
	templateStore := NewInMemoryTemplateStore()
	s.runs = NewInMemoryRunStore()
	s.finalizer = &finalizerStub{}
	s.orch = NewOrchestrator(templateStore, s.runs, s.finalizer)
	s.templates = NewTemplateService(templateStore,
		audit.NewService(audit.NewInMemoryStore()), storetx.NewInMemory())
	s.ctx = context.Background()
	s.actor = id.NewUserID()
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) reviewTemplate() *Template {
	template, err := s.templates.CreateTemplate(s.ctx, CreateTemplateInput{
		Name:     "Standard Review",
		Category: "QUALITY",
		Steps: []CreateTemplateStepInput{
			{Role: "AUTHOR", StepType: "REVIEW"},
			{Role: "QA", StepType: "REVIEW"},
			{Role: "QA_MANAGER", StepType: "APPROVAL"},
		},
	}, s.actor)
	s.Require().NoError(err)
	return template
}

func (s *OrchestratorSuite) TestInstantiateRun() {
	template := s.reviewTemplate()

	s.Run("copies step shape with contiguous orders", func() {
		docID := id.NewDocumentID()
		runID, err := s.orch.InstantiateRun(s.ctx, docID, template.ID)
		s.Require().NoError(err)

		run, steps, err := s.runs.LoadRunWithSteps(s.ctx, runID)
		s.Require().NoError(err)
		s.Equal(StatusPending, run.Status)
		s.Equal(docID, run.DocumentID)
		s.Equal(1, run.CurrentStep)
		s.Require().Len(steps, 3)
		for i, step := range steps {
			s.Equal(i+1, step.Order)
			s.Equal(StatusPending, step.Status)
			s.Nil(step.Assignee)
			s.Nil(step.DocumentVersionID)
		}
		s.Equal(identity.RoleQAManager, steps[2].Role)
		s.Equal(StepApproval, steps[2].StepType)
	})

	s.Run("unknown template", func() {
		_, err := s.orch.InstantiateRun(s.ctx, id.NewDocumentID(), id.NewTemplateID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *OrchestratorSuite) completeStep(runID id.RunID, order int) {
	_, steps, err := s.runs.LoadRunWithSteps(s.ctx, runID)
	s.Require().NoError(err)
	for _, step := range steps {
		if step.Order == order {
			s.Require().NoError(s.runs.CompleteStep(s.ctx, step.ID, id.NewDocumentVersionID(), "", time.Now()))
			return
		}
	}
	s.FailNow("step not found")
}

func (s *OrchestratorSuite) TestAdvance() {
	template := s.reviewTemplate()
	docID := id.NewDocumentID()
	runID, err := s.orch.InstantiateRun(s.ctx, docID, template.ID)
	s.Require().NoError(err)

	s.Run("promotes lowest-order pending step", func() {
		s.completeStep(runID, 1)
		completed, err := s.orch.Advance(s.ctx, runID, false)
		s.Require().NoError(err)
		s.False(completed)

		run, steps, err := s.runs.LoadRunWithSteps(s.ctx, runID)
		s.Require().NoError(err)
		s.Equal(StatusInProgress, run.Status)
		s.Equal(2, run.CurrentStep)
		s.Equal(StatusInProgress, steps[1].Status)
		s.Equal(StatusPending, steps[2].Status)
		s.Zero(s.finalizer.calls)
	})

	s.Run("completes run and finalizes the document", func() {
		s.completeStep(runID, 2)
		completed, err := s.orch.Advance(s.ctx, runID, false)
		s.Require().NoError(err)
		s.False(completed)

		s.completeStep(runID, 3)
		completed, err = s.orch.Advance(s.ctx, runID, true)
		s.Require().NoError(err)
		s.True(completed)

		run, _, err := s.runs.LoadRunWithSteps(s.ctx, runID)
		s.Require().NoError(err)
		s.Equal(StatusCompleted, run.Status)
		s.Require().NotNil(run.CompletedAt)
		s.Equal(1, s.finalizer.calls)
		s.Equal(docID, s.finalizer.lastDoc)
		s.True(s.finalizer.approved)
	})
}

func (s *OrchestratorSuite) TestCompleteStepIsConditional() {
	template := s.reviewTemplate()
	runID, err := s.orch.InstantiateRun(s.ctx, id.NewDocumentID(), template.ID)
	s.Require().NoError(err)

	_, steps, err := s.runs.LoadRunWithSteps(s.ctx, runID)
	s.Require().NoError(err)
	stepID := steps[0].ID

	s.Require().NoError(s.runs.CompleteStep(s.ctx, stepID, id.NewDocumentVersionID(), "looks good", time.Now()))
	err = s.runs.CompleteStep(s.ctx, stepID, id.NewDocumentVersionID(), "", time.Now())
	s.ErrorIs(err, sentinel.ErrConflict)
}
