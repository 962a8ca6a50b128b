package signature

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"doccontrol/internal/audit"
	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	"doccontrol/internal/signature/lockout"
	"doccontrol/internal/workflow"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/storetx"
)

const signerPassword = "CorrectHorseBattery1"

type GateSuite struct {
	suite.Suite
	gate       *Gate
	documents  *document.Service
	identities *identity.Service
	templates  *workflow.TemplateService
	runs       *workflow.InMemoryRunStore
	signatures *InMemoryStore
	events     *audit.InMemoryStore
	ctx        context.Context
	admin      id.UserID
	typeID     id.DocumentTypeID
}

func (s *GateSuite) SetupTest() {
	s.ctx = context.Background()
	s.admin = id.NewUserID()
	s.events = audit.NewInMemoryStore()
	recorder := audit.NewService(s.events)
	tx := storetx.NewInMemory()

	s.identities = identity.NewService(identity.NewInMemory(), recorder, tx)
	s.documents = document.NewService(document.NewInMemoryStore(),
		document.NewInMemoryVersionStore(), document.NewInMemoryTypeStore(), recorder, tx)

	templateStore := workflow.NewInMemoryTemplateStore()
	s.runs = workflow.NewInMemoryRunStore()
	orch := workflow.NewOrchestrator(templateStore, s.runs, s.documents)
	s.documents.SetWorkflowStarter(orch)
	s.templates = workflow.NewTemplateService(templateStore, recorder, tx)

	s.signatures = NewInMemoryStore()
	s.gate = NewGate(s.signatures, s.documents, s.identities, s.runs, orch, recorder, tx,
		WithGuard(lockout.NewMemory(3, time.Minute)))

	docType, err := s.documents.CreateType(s.ctx, document.CreateTypeInput{Name: "SOP"}, s.admin)
	s.Require().NoError(err)
	s.typeID = docType.ID
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) newSigner(role string) *identity.User {
	user, err := s.identities.CreateUser(s.ctx, identity.CreateUserInput{
		Name:     "Signer " + role,
		Email:    role + "@example.com",
		Password: signerPassword,
		Role:     role,
	}, s.admin)
	s.Require().NoError(err)
	return user
}

func (s *GateSuite) newDocument(templateID *id.TemplateID) *document.Document {
	doc, err := s.documents.CreateDocument(s.ctx, document.CreateDocumentInput{
		Title:      "Batch Record Review",
		Number:     "SOP-" + id.NewDocumentID().String()[:8],
		Category:   "QUALITY",
		Security:   "INTERNAL",
		TypeID:     s.typeID,
		TemplateID: templateID,
		Content:    "1. Scope ...",
	}, s.admin, identity.RoleAuthor)
	s.Require().NoError(err)
	return doc
}

func (s *GateSuite) approvalTemplate() *workflow.Template {
	template, err := s.templates.CreateTemplate(s.ctx, workflow.CreateTemplateInput{
		Name:     "Three Step Approval",
		Category: "QUALITY",
		Steps: []workflow.CreateTemplateStepInput{
			{Role: "AUTHOR", StepType: "REVIEW"},
			{Role: "QA", StepType: "REVIEW"},
			{Role: "QA_MANAGER", StepType: "APPROVAL"},
		},
	}, s.admin)
	s.Require().NoError(err)
	return template
}

func (s *GateSuite) runFor(doc *document.Document) (*workflow.Run, []*workflow.Step) {
	runs, err := s.runs.ListByDocument(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	run, steps, err := s.runs.LoadRunWithSteps(s.ctx, runs[0].ID)
	s.Require().NoError(err)
	return run, steps
}

func (s *GateSuite) submit(signer *identity.User, versionID id.DocumentVersionID, stepID *id.StepID, purpose string) (*ElectronicSignature, error) {
	return s.gate.Submit(s.ctx, SubmitInput{
		VersionID:  versionID,
		StepID:     stepID,
		Purpose:    purpose,
		Credential: signerPassword,
	}, signer.ID, signer.Role)
}

func (s *GateSuite) TestThreeStepApproval() {
	template := s.approvalTemplate()
	templateID := template.ID
	doc := s.newDocument(&templateID)
	versionID := *doc.CurrentVersionID

	author := s.newSigner("AUTHOR")
	qa := s.newSigner("QA")
	qaManager := s.newSigner("QA_MANAGER")

	run, steps := s.runFor(doc)
	s.Equal(workflow.StatusPending, run.Status)
	s.Require().Len(steps, 3)

	_, err := s.submit(author, versionID, &steps[0].ID, "REVIEW")
	s.Require().NoError(err)
	run, _ = s.runFor(doc)
	s.Equal(workflow.StatusInProgress, run.Status)
	s.Equal(2, run.CurrentStep)

	_, err = s.submit(qa, versionID, &steps[1].ID, "REVIEW")
	s.Require().NoError(err)
	run, _ = s.runFor(doc)
	s.Equal(workflow.StatusInProgress, run.Status)
	s.Equal(3, run.CurrentStep)

	_, err = s.submit(qaManager, versionID, &steps[2].ID, "APPROVAL")
	s.Require().NoError(err)
	run, steps = s.runFor(doc)
	s.Equal(workflow.StatusCompleted, run.Status)
	s.Require().NotNil(run.CompletedAt)
	for _, step := range steps {
		s.Equal(workflow.StatusCompleted, step.Status)
		s.Require().NotNil(step.DocumentVersionID)
		s.Equal(versionID, *step.DocumentVersionID)
	}

	final, err := s.documents.GetDocument(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(document.StatusApproved, final.Status)
	s.Equal(document.LifecycleEffective, final.LifecycleState)
}

func (s *GateSuite) TestNonApprovalPurposeEffective() {
	template, err := s.templates.CreateTemplate(s.ctx, workflow.CreateTemplateInput{
		Name:     "Single Review",
		Category: "QUALITY",
		Steps:    []workflow.CreateTemplateStepInput{{Role: "QA", StepType: "REVIEW"}},
	}, s.admin)
	s.Require().NoError(err)
	doc := s.newDocument(&template.ID)
	qa := s.newSigner("QA")
	_, steps := s.runFor(doc)

	_, err = s.submit(qa, *doc.CurrentVersionID, &steps[0].ID, "REVIEW")
	s.Require().NoError(err)

	final, err := s.documents.GetDocument(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(document.StatusEffective, final.Status)
	s.Equal(document.LifecycleEffective, final.LifecycleState)
}

func (s *GateSuite) TestWrongCredential() {
	doc := s.newDocument(nil)
	signer := s.newSigner("QA")

	_, err := s.gate.Submit(s.ctx, SubmitInput{
		VersionID:  *doc.CurrentVersionID,
		Purpose:    "REVIEW",
		Credential: "not-the-password",
	}, signer.ID, signer.Role)
	s.True(dErrors.HasCode(err, dErrors.CodeSignatureRejected))

	sigs, err := s.signatures.ListByVersion(s.ctx, *doc.CurrentVersionID)
	s.Require().NoError(err)
	s.Empty(sigs)

	events, err := s.events.List(s.ctx, 50)
	s.Require().NoError(err)
	rejected := 0
	for _, event := range events {
		if event.Action == audit.ActionSignatureRejected {
			rejected++
			s.Equal("invalid_credentials", event.Metadata["reason"])
		}
	}
	s.Equal(1, rejected)
}

func (s *GateSuite) TestLockoutAfterRepeatedFailures() {
	doc := s.newDocument(nil)
	signer := s.newSigner("QA")

	for i := 0; i < 3; i++ {
		_, err := s.gate.Submit(s.ctx, SubmitInput{
			VersionID:  *doc.CurrentVersionID,
			Purpose:    "REVIEW",
			Credential: "wrong",
		}, signer.ID, signer.Role)
		s.True(dErrors.HasCode(err, dErrors.CodeSignatureRejected))
	}

	// Even the correct credential is refused while locked.
	_, err := s.submit(signer, *doc.CurrentVersionID, nil, "REVIEW")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *GateSuite) TestSignatureWithoutStep() {
	doc := s.newDocument(nil)
	signer := s.newSigner("REVIEWER")

	sig, err := s.submit(signer, *doc.CurrentVersionID, nil, "ACKNOWLEDGEMENT")
	s.Require().NoError(err)
	s.Nil(sig.WorkflowStepID)
	s.NotEmpty(sig.SignatureHash)

	final, err := s.documents.GetDocument(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(document.StatusDraft, final.Status)
}

func (s *GateSuite) TestUnknownVersion() {
	signer := s.newSigner("QA")
	_, err := s.submit(signer, id.NewDocumentVersionID(), nil, "REVIEW")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *GateSuite) TestAuthorizationByRoleOrAssignee() {
	template := s.approvalTemplate()
	doc := s.newDocument(&template.ID)
	_, steps := s.runFor(doc)

	s.Run("role mismatch is rejected before any mutation", func() {
		viewer := s.newSigner("VIEWER")
		_, err := s.submit(viewer, *doc.CurrentVersionID, &steps[0].ID, "REVIEW")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		sigs, err := s.signatures.ListByVersion(s.ctx, *doc.CurrentVersionID)
		s.Require().NoError(err)
		s.Empty(sigs)

		_, fresh := s.runFor(doc)
		s.Equal(workflow.StatusPending, fresh[0].Status)
	})

	s.Run("assignee may sign regardless of role", func() {
		outsider := s.newSigner("DOCUMENT_CONTROLLER")
		s.Require().NoError(s.runs.CompleteStep(s.ctx, steps[0].ID, *doc.CurrentVersionID, "", time.Now()))
		_, fresh := s.runFor(doc)

		// Assign the QA step to the outsider.
		s.Require().NoError(s.runs.AssignStep(s.ctx, fresh[1].ID, outsider.ID))

		_, err := s.submit(outsider, *doc.CurrentVersionID, &fresh[1].ID, "REVIEW")
		s.Require().NoError(err)
	})
}

func (s *GateSuite) TestConflictOnCompletedStep() {
	template := s.approvalTemplate()
	doc := s.newDocument(&template.ID)
	author := s.newSigner("AUTHOR")
	_, steps := s.runFor(doc)

	_, err := s.submit(author, *doc.CurrentVersionID, &steps[0].ID, "REVIEW")
	s.Require().NoError(err)

	_, err = s.submit(author, *doc.CurrentVersionID, &steps[0].ID, "REVIEW")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// The losing submission must not leave a signature behind.
	sigs, err := s.signatures.ListByVersion(s.ctx, *doc.CurrentVersionID)
	s.Require().NoError(err)
	s.Len(sigs, 1)
}

func (s *GateSuite) TestInactiveSignerCannotSign() {
	doc := s.newDocument(nil)
	signer := s.newSigner("QA")
	inactive := false
	_, err := s.identities.UpdateUser(s.ctx, signer.ID, identity.UpdateUserInput{IsActive: &inactive}, s.admin)
	s.Require().NoError(err)

	_, err = s.submit(signer, *doc.CurrentVersionID, nil, "REVIEW")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}
