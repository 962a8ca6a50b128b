package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"doccontrol/internal/audit"
	"doccontrol/internal/identity"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/storetx"
)

type starterStub struct {
	runID   id.RunID
	calls   int
	lastDoc id.DocumentID
	err     error
}

func (s *starterStub) InstantiateRun(_ context.Context, documentID id.DocumentID, _ id.TemplateID) (id.RunID, error) {
	s.calls++
	s.lastDoc = documentID
	if s.err != nil {
		return id.RunID{}, s.err
	}
	return s.runID, nil
}

type ServiceSuite struct {
	suite.Suite
	svc     *Service
	events  *audit.InMemoryStore
	starter *starterStub
	ctx     context.Context
	actor   id.UserID
	typeID  id.DocumentTypeID
}

func (s *ServiceSuite) SetupTest() {
	s.events = audit.NewInMemoryStore()
	s.starter = &starterStub{runID: id.NewRunID()}
	types := NewInMemoryTypeStore()
	s.svc = NewService(NewInMemoryStore(), NewInMemoryVersionStore(), types,
		audit.NewService(s.events), storetx.NewInMemory(),
		WithWorkflowStarter(s.starter))
	s.ctx = context.Background()
	s.actor = id.NewUserID()

	docType, err := s.svc.CreateType(s.ctx, CreateTypeInput{Name: "SOP"}, s.actor)
	s.Require().NoError(err)
	s.typeID = docType.ID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) validInput() CreateDocumentInput {
	return CreateDocumentInput{
		Title:    "Cleaning Validation Procedure",
		Number:   "SOP-001",
		Category: "QUALITY",
		Security: "INTERNAL",
		TypeID:   s.typeID,
		Content:  "1. Scope ...",
	}
}

func (s *ServiceSuite) TestCreateDocument() {
	s.Run("creates document with first version", func() {
		doc, err := s.svc.CreateDocument(s.ctx, s.validInput(), s.actor, identity.RoleAuthor)
		s.Require().NoError(err)
		s.Equal(StatusDraft, doc.Status)
		s.Equal(LifecycleDraft, doc.LifecycleState)
		s.Require().NotNil(doc.CurrentVersionID)

		version, err := s.svc.GetVersion(s.ctx, *doc.CurrentVersionID)
		s.Require().NoError(err)
		s.Equal("1.0", version.VersionLabel)
		s.False(version.IsSuperseded)
		s.Equal(identity.RoleAuthor, version.IssuerRole)

		events, err := s.events.ListByDocument(s.ctx, doc.ID, 10)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionDocumentCreated, events[0].Action)
	})

	s.Run("instantiates run when template supplied", func() {
		input := s.validInput()
		input.Number = "SOP-002"
		templateID := id.NewTemplateID()
		input.TemplateID = &templateID

		doc, err := s.svc.CreateDocument(s.ctx, input, s.actor, identity.RoleAuthor)
		s.Require().NoError(err)
		s.Equal(1, s.starter.calls)
		s.Equal(doc.ID, s.starter.lastDoc)
	})

	s.Run("rejects duplicate number", func() {
		input := s.validInput()
		input.Number = "SOP-777"
		_, err := s.svc.CreateDocument(s.ctx, input, s.actor, identity.RoleAuthor)
		s.Require().NoError(err)
		_, err = s.svc.CreateDocument(s.ctx, input, s.actor, identity.RoleAuthor)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects unknown type", func() {
		input := s.validInput()
		input.Number = "SOP-404"
		input.TypeID = id.NewDocumentTypeID()
		_, err := s.svc.CreateDocument(s.ctx, input, s.actor, identity.RoleAuthor)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects unknown category", func() {
		input := s.validInput()
		input.Category = "FINANCE"
		_, err := s.svc.CreateDocument(s.ctx, input, s.actor, identity.RoleAuthor)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rolls back document when run instantiation fails", func() {
		s.starter.err = dErrors.New(dErrors.CodeNotFound, "workflow template not found")
		input := s.validInput()
		input.Number = "SOP-003"
		templateID := id.NewTemplateID()
		input.TemplateID = &templateID

		_, err := s.svc.CreateDocument(s.ctx, input, s.actor, identity.RoleAuthor)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestCreateVersion() {
	doc, err := s.svc.CreateDocument(s.ctx, s.validInput(), s.actor, identity.RoleAuthor)
	s.Require().NoError(err)
	first := *doc.CurrentVersionID

	s.Run("supersedes prior versions and resets lifecycle", func() {
		version, err := s.svc.CreateVersion(s.ctx, doc.ID, CreateVersionInput{
			VersionLabel: "2.0",
			ChangeNote:   "annual review",
		}, s.actor, identity.RoleQA)
		s.Require().NoError(err)
		s.False(version.IsSuperseded)

		updated, err := s.svc.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(StatusDraft, updated.Status)
		s.Equal(LifecycleUnderRevision, updated.LifecycleState)
		s.Require().NotNil(updated.CurrentVersionID)
		s.Equal(version.ID, *updated.CurrentVersionID)

		versions, err := s.svc.ListVersions(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Require().Len(versions, 2)
		current := 0
		for _, v := range versions {
			if !v.IsSuperseded {
				current++
				s.Equal(version.ID, v.ID)
			}
		}
		s.Equal(1, current)

		old, err := s.svc.GetVersion(s.ctx, first)
		s.Require().NoError(err)
		s.True(old.IsSuperseded)
	})

	s.Run("fails for unknown document", func() {
		_, err := s.svc.CreateVersion(s.ctx, id.NewDocumentID(), CreateVersionInput{VersionLabel: "1.1"},
			s.actor, identity.RoleQA)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("requires version label", func() {
		_, err := s.svc.CreateVersion(s.ctx, doc.ID, CreateVersionInput{}, s.actor, identity.RoleQA)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestUpdateDocument() {
	doc, err := s.svc.CreateDocument(s.ctx, s.validInput(), s.actor, identity.RoleAuthor)
	s.Require().NoError(err)

	s.Run("applies patch and records metadata", func() {
		status := "RETIRED"
		state := "OBSOLETE"
		updated, err := s.svc.UpdateDocument(s.ctx, doc.ID, UpdateDocumentPatch{
			Status:         &status,
			LifecycleState: &state,
		}, s.actor)
		s.Require().NoError(err)
		s.Equal(StatusRetired, updated.Status)
		s.Equal(LifecycleObsolete, updated.LifecycleState)

		events, err := s.events.ListByDocument(s.ctx, doc.ID, 10)
		s.Require().NoError(err)
		s.Equal(audit.ActionDocumentUpdated, events[0].Action)
		s.Equal("RETIRED", events[0].Metadata["status"])
	})

	s.Run("rejects invalid status", func() {
		status := "SIGNED_OFF"
		_, err := s.svc.UpdateDocument(s.ctx, doc.ID, UpdateDocumentPatch{Status: &status}, s.actor)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestFinalizeWorkflow() {
	doc, err := s.svc.CreateDocument(s.ctx, s.validInput(), s.actor, identity.RoleAuthor)
	s.Require().NoError(err)

	s.Run("approved selects APPROVED", func() {
		s.Require().NoError(s.svc.FinalizeWorkflow(s.ctx, doc.ID, true))
		updated, err := s.svc.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(StatusApproved, updated.Status)
		s.Equal(LifecycleEffective, updated.LifecycleState)
	})

	s.Run("otherwise EFFECTIVE", func() {
		s.Require().NoError(s.svc.FinalizeWorkflow(s.ctx, doc.ID, false))
		updated, err := s.svc.GetDocument(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(StatusEffective, updated.Status)
	})
}
