package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"doccontrol/internal/audit"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/storetx"
)

type TemplateSuite struct {
	suite.Suite
	svc    *TemplateService
	events *audit.InMemoryStore
	ctx    context.Context
	actor  id.UserID
}

func (s *TemplateSuite) SetupTest() {
	s.events = audit.NewInMemoryStore()
	s.svc = NewTemplateService(NewInMemoryTemplateStore(),
		audit.NewService(s.events), storetx.NewInMemory())
	s.ctx = context.Background()
	s.actor = id.NewUserID()
}

func TestTemplateSuite(t *testing.T) {
	suite.Run(t, new(TemplateSuite))
}

func (s *TemplateSuite) validInput() CreateTemplateInput {
	return CreateTemplateInput{
		Name:     "SOP Approval",
		Category: "QUALITY",
		Steps: []CreateTemplateStepInput{
			{Role: "REVIEWER", StepType: "REVIEW", SLAHours: 48},
			{Role: "APPROVER", StepType: "APPROVAL", RequireSignature: true},
		},
	}
}

func (s *TemplateSuite) TestCreateTemplate() {
	s.Run("assigns contiguous orders and audits", func() {
		template, err := s.svc.CreateTemplate(s.ctx, s.validInput(), s.actor)
		s.Require().NoError(err)
		s.Require().Len(template.Steps, 2)
		s.Equal(1, template.Steps[0].Order)
		s.Equal(2, template.Steps[1].Order)

		events, err := s.events.List(s.ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionWorkflowTemplateCreated, events[0].Action)
	})

	s.Run("rejects empty step list", func() {
		input := s.validInput()
		input.Steps = nil
		_, err := s.svc.CreateTemplate(s.ctx, input, s.actor)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects non-contiguous orders", func() {
		input := s.validInput()
		input.Steps[1].Order = 5
		_, err := s.svc.CreateTemplate(s.ctx, input, s.actor)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown role", func() {
		input := s.validInput()
		input.Steps[0].Role = "INTERN"
		_, err := s.svc.CreateTemplate(s.ctx, input, s.actor)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *TemplateSuite) TestDefaultExclusivity() {
	input := s.validInput()
	input.IsDefault = true
	first, err := s.svc.CreateTemplate(s.ctx, input, s.actor)
	s.Require().NoError(err)
	s.True(first.IsDefault)

	second := s.validInput()
	second.Name = "SOP Approval v2"
	second.IsDefault = true
	replacement, err := s.svc.CreateTemplate(s.ctx, second, s.actor)
	s.Require().NoError(err)

	templates, err := s.svc.ListTemplates(s.ctx)
	s.Require().NoError(err)
	defaults := 0
	for _, t := range templates {
		if t.IsDefault {
			defaults++
			s.Equal(replacement.ID, t.ID)
		}
	}
	s.Equal(1, defaults)
}
