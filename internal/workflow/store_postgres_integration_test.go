//go:build integration

package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/testutil/containers"
)

func TestPostgresRunStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	// Satisfy the foreign-key chain: user, type, document, version.
	actor := &identity.User{
		ID: id.NewUserID(), Name: "Author", Email: "author@example.com",
		Role: identity.RoleAuthor, PasswordHash: "$2a$10$fakehash", IsActive: true, CreatedAt: now,
	}
	require.NoError(t, identity.NewPostgresStore(pg.DB).CreateIfEmailAvailable(ctx, actor))

	docType := &document.Type{ID: id.NewDocumentTypeID(), Name: "SOP", CreatedAt: now}
	require.NoError(t, document.NewPostgresTypeStore(pg.DB).CreateIfNameAvailable(ctx, docType))

	doc := &document.Document{
		ID: id.NewDocumentID(), Title: "Calibration", Number: "SOP-900",
		Category: document.CategoryQuality, Security: document.SecurityInternal,
		TypeID: docType.ID, Status: document.StatusDraft, LifecycleState: document.LifecycleDraft,
		CreatedBy: actor.ID, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, document.NewPostgresStore(pg.DB).CreateIfNumberAvailable(ctx, doc))

	version := &document.Version{
		ID: id.NewDocumentVersionID(), DocumentID: doc.ID, VersionLabel: "1.0",
		IssuerRole: identity.RoleAuthor, Status: document.StatusDraft,
		CreatedBy: actor.ID, IssuedBy: actor.ID, CreatedAt: now,
	}
	require.NoError(t, document.NewPostgresVersionStore(pg.DB).Create(ctx, version))

	store := NewPostgresRunStore(pg.DB)
	run := &Run{
		ID: id.NewRunID(), DocumentID: doc.ID, Status: StatusPending,
		CurrentStep: 1, StartedAt: now,
	}
	steps := []*Step{
		{ID: id.NewStepID(), RunID: run.ID, Order: 1, Role: identity.RoleQA, StepType: StepReview, Status: StatusPending},
		{ID: id.NewStepID(), RunID: run.ID, Order: 2, Role: identity.RoleQAManager, StepType: StepApproval, Status: StatusPending},
	}
	require.NoError(t, store.Create(ctx, run, steps))

	t.Run("load run with ordered steps", func(t *testing.T) {
		loaded, loadedSteps, err := store.LoadRunWithSteps(ctx, run.ID)
		require.NoError(t, err)
		require.Equal(t, StatusPending, loaded.Status)
		require.Len(t, loadedSteps, 2)
		require.Equal(t, 1, loadedSteps[0].Order)
	})

	t.Run("complete step is conditional", func(t *testing.T) {
		require.NoError(t, store.CompleteStep(ctx, steps[0].ID, version.ID, "ok", now))
		require.ErrorIs(t, store.CompleteStep(ctx, steps[0].ID, version.ID, "again", now),
			sentinel.ErrConflict)

		count, err := store.CountPendingSteps(ctx, run.ID)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("promote and complete run", func(t *testing.T) {
		require.NoError(t, store.MarkStepInProgress(ctx, steps[1].ID))
		run.Status = StatusInProgress
		run.CurrentStep = 2
		require.NoError(t, store.UpdateRun(ctx, run))

		loaded, loadedSteps, err := store.LoadRunWithSteps(ctx, run.ID)
		require.NoError(t, err)
		require.Equal(t, StatusInProgress, loaded.Status)
		require.Equal(t, StatusInProgress, loadedSteps[1].Status)
	})
}
