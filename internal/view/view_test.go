package view

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"doccontrol/internal/audit"
	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	"doccontrol/internal/signature"
	"doccontrol/internal/workflow"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/storetx"
)

type fixture struct {
	view       *Service
	documents  *document.Service
	identities *identity.Service
	templates  *workflow.TemplateService
	gate       *signature.Gate
	admin      id.UserID
	typeID     id.DocumentTypeID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	recorder := audit.NewService(audit.NewInMemoryStore())
	uow := storetx.NewInMemory()

	identities := identity.NewService(identity.NewInMemory(), recorder, uow)
	documents := document.NewService(document.NewInMemoryStore(),
		document.NewInMemoryVersionStore(), document.NewInMemoryTypeStore(), recorder, uow)
	templateStore := workflow.NewInMemoryTemplateStore()
	runs := workflow.NewInMemoryRunStore()
	orch := workflow.NewOrchestrator(templateStore, runs, documents)
	documents.SetWorkflowStarter(orch)
	sigStore := signature.NewInMemoryStore()
	gate := signature.NewGate(sigStore, documents, identities, runs, orch, recorder, uow)

	f := &fixture{
		view:       NewService(documents, orch, sigStore, recorder),
		documents:  documents,
		identities: identities,
		templates:  workflow.NewTemplateService(templateStore, recorder, uow),
		gate:       gate,
		admin:      id.NewUserID(),
	}
	docType, err := documents.CreateType(ctx, document.CreateTypeInput{Name: "SOP"}, f.admin)
	require.NoError(t, err)
	f.typeID = docType.ID
	return f
}

func TestGetDocumentAggregate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	template, err := f.templates.CreateTemplate(ctx, workflow.CreateTemplateInput{
		Name:     "Review",
		Category: "QUALITY",
		Steps:    []workflow.CreateTemplateStepInput{{Role: "QA", StepType: "REVIEW"}},
	}, f.admin)
	require.NoError(t, err)

	doc, err := f.documents.CreateDocument(ctx, document.CreateDocumentInput{
		Title:      "Deviation Handling",
		Number:     "SOP-100",
		Category:   "QUALITY",
		Security:   "INTERNAL",
		TypeID:     f.typeID,
		TemplateID: &template.ID,
	}, f.admin, identity.RoleAuthor)
	require.NoError(t, err)

	_, err = f.documents.CreateVersion(ctx, doc.ID, document.CreateVersionInput{
		VersionLabel: "2.0",
	}, f.admin, identity.RoleQA)
	require.NoError(t, err)

	aggregate, err := f.view.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ID, aggregate.Document.ID)
	require.Len(t, aggregate.Versions, 2)
	require.Len(t, aggregate.Runs, 1)
	require.Len(t, aggregate.Runs[0].Steps, 1)
	require.NotEmpty(t, aggregate.Events)
}

func TestGetDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	template, err := f.templates.CreateTemplate(ctx, workflow.CreateTemplateInput{
		Name:     "Review",
		Category: "QUALITY",
		Steps:    []workflow.CreateTemplateStepInput{{Role: "QA", StepType: "REVIEW"}},
	}, f.admin)
	require.NoError(t, err)

	due := time.Now().Add(7 * 24 * time.Hour)
	_, err = f.documents.CreateDocument(ctx, document.CreateDocumentInput{
		Title:         "Deviation Handling",
		Number:        "SOP-100",
		Category:      "QUALITY",
		Security:      "INTERNAL",
		TypeID:        f.typeID,
		TemplateID:    &template.ID,
		NextIssueDate: &due,
	}, f.admin, identity.RoleAuthor)
	require.NoError(t, err)

	qa := id.NewUserID()
	dashboard, err := f.view.GetDashboard(ctx, qa, identity.RoleQA)
	require.NoError(t, err)
	require.Equal(t, 1, dashboard.TotalDocuments)
	require.Equal(t, 1, dashboard.DocumentsByStatus[document.StatusDraft])
	require.Equal(t, 1, dashboard.PendingSteps)
	require.Len(t, dashboard.UpcomingRevisions, 1)
	require.Positive(t, dashboard.RecentEvents)
}
