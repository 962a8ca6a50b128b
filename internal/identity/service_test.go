package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"doccontrol/internal/audit"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/storetx"
)

type ServiceSuite struct {
	suite.Suite
	svc    *Service
	events *audit.InMemoryStore
	ctx    context.Context
	actor  id.UserID
}

func (s *ServiceSuite) SetupTest() {
	s.events = audit.NewInMemoryStore()
	s.svc = NewService(NewInMemory(), audit.NewService(s.events), storetx.NewInMemory())
	s.ctx = context.Background()
	s.actor = id.NewUserID()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) validInput() CreateUserInput {
	return CreateUserInput{
		Name:     "Quality Administrator",
		Email:    "qa.admin@example.com",
		Password: "Str0ngPassphrase!",
		Role:     "QA_MANAGER",
	}
}

func (s *ServiceSuite) TestCreateUser() {
	s.Run("creates user and audit event", func() {
		user, err := s.svc.CreateUser(s.ctx, s.validInput(), s.actor)
		s.Require().NoError(err)
		s.Equal(RoleQAManager, user.Role)
		s.True(user.IsActive)
		s.NotEqual("Str0ngPassphrase!", user.PasswordHash)

		events, err := s.events.List(s.ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionUserCreated, events[0].Action)
	})

	s.Run("rejects short password", func() {
		input := s.validInput()
		input.Password = "short"
		_, err := s.svc.CreateUser(s.ctx, input, s.actor)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown role", func() {
		input := s.validInput()
		input.Role = "SUPERUSER"
		_, err := s.svc.CreateUser(s.ctx, input, s.actor)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects duplicate email", func() {
		input := s.validInput()
		input.Email = "second@acme.test"
		_, err := s.svc.CreateUser(s.ctx, input, s.actor)
		s.Require().NoError(err)
		_, err = s.svc.CreateUser(s.ctx, input, s.actor)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestVerifyCredential() {
	user, err := s.svc.CreateUser(s.ctx, s.validInput(), s.actor)
	s.Require().NoError(err)

	s.Run("accepts the right password", func() {
		verified, err := s.svc.VerifyCredential(s.ctx, user.ID, "Str0ngPassphrase!")
		s.Require().NoError(err)
		s.Equal(user.ID, verified.ID)
	})

	s.Run("rejects the wrong password", func() {
		_, err := s.svc.VerifyCredential(s.ctx, user.ID, "WrongPassphrase!")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects deactivated accounts", func() {
		inactive := false
		_, err := s.svc.UpdateUser(s.ctx, user.ID, UpdateUserInput{IsActive: &inactive}, s.actor)
		s.Require().NoError(err)

		_, err = s.svc.VerifyCredential(s.ctx, user.ID, "Str0ngPassphrase!")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown user is not found", func() {
		_, err := s.svc.VerifyCredential(s.ctx, id.NewUserID(), "whatever-password")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestUpdateUser() {
	user, err := s.svc.CreateUser(s.ctx, s.validInput(), s.actor)
	s.Require().NoError(err)

	role := "AUTHOR"
	updated, err := s.svc.UpdateUser(s.ctx, user.ID, UpdateUserInput{Role: &role}, s.actor)
	s.Require().NoError(err)
	s.Equal(RoleAuthor, updated.Role)

	events, err := s.events.List(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(audit.ActionUserUpdated, events[0].Action)
}
