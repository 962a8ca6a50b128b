package signature

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"doccontrol/internal/audit"
	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	"doccontrol/internal/signature/lockout"
	"doccontrol/internal/workflow"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/secrets"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/platform/storetx"
	"doccontrol/pkg/requestcontext"
)

// Observer receives signature outcome notifications for counters.
type Observer interface {
	SignatureCaptured()
	SignatureRejected()
}

// Gate validates a signer's credential, persists the signature and drives the
// step/run/document cascade. Everything after the credential check runs in
// one unit of work; a failure anywhere rolls the whole submission back. The
// step is locked, authorized and completed before the signature row is
// written, so a refused or conflicting submission leaves no writes behind
// even on stores without rollback.
//
// The credential check itself happens before that unit of work so the
// SIGNATURE_REJECTED audit event survives the rollback that follows a
// mismatch.
type Gate struct {
	signatures   Store
	documents    *document.Service
	identities   *identity.Service
	runs         workflow.RunStore
	orchestrator *workflow.Orchestrator
	audit        audit.Recorder
	guard        lockout.Guard
	tx           storetx.StoreTx
	logger       *slog.Logger
	tracer       trace.Tracer
	observer     Observer
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

func WithGuard(guard lockout.Guard) Option {
	return func(g *Gate) { g.guard = guard }
}

func WithObserver(observer Observer) Option {
	return func(g *Gate) { g.observer = observer }
}

func NewGate(signatures Store, documents *document.Service, identities *identity.Service,
	runs workflow.RunStore, orchestrator *workflow.Orchestrator,
	recorder audit.Recorder, tx storetx.StoreTx, opts ...Option) *Gate {
	g := &Gate{
		signatures:   signatures,
		documents:    documents,
		identities:   identities,
		runs:         runs,
		orchestrator: orchestrator,
		audit:        recorder,
		tx:           tx,
		logger:       slog.Default(),
		tracer:       otel.Tracer("doccontrol/signature"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SubmitInput is one signature submission. Credential is the signer's
// password, re-verified on every submission regardless of session state.
type SubmitInput struct {
	VersionID  id.DocumentVersionID
	StepID     *id.StepID
	Purpose    string
	Credential string
	Comment    string
}

func (g *Gate) Submit(ctx context.Context, input SubmitInput, actor id.UserID, actorRole identity.Role) (*ElectronicSignature, error) {
	purpose, err := ParsePurpose(input.Purpose)
	if err != nil {
		return nil, err
	}

	ctx, span := g.tracer.Start(ctx, "signature.submit", trace.WithAttributes(
		attribute.String("signature.purpose", string(purpose)),
		attribute.Bool("signature.has_step", input.StepID != nil),
	))
	defer span.End()

	if g.guard != nil {
		locked, err := g.guard.Locked(ctx, actor)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check signature lockout")
		}
		if locked {
			return nil, dErrors.New(dErrors.CodeForbidden, "signature attempts are temporarily locked")
		}
	}

	if err := g.verifyCredential(ctx, input, actor); err != nil {
		return nil, err
	}

	var sig *ElectronicSignature
	err = g.tx.RunInTx(ctx, func(txCtx context.Context) error {
		version, err := g.documents.GetVersion(txCtx, input.VersionID)
		if err != nil {
			return err
		}

		now := requestcontext.Now(txCtx)

		var runID *id.RunID
		if input.StepID != nil {
			rid, err := g.completeStep(txCtx, *input.StepID, version, purpose, actor, actorRole, input.Comment, now)
			if err != nil {
				return err
			}
			runID = &rid
		}

		// bcrypt caps its input at 72 bytes, so the binding material is
		// digested first.
		material := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", actor, version.ID, now.UnixNano())))
		hash, err := secrets.Hash(base64.RawStdEncoding.EncodeToString(material[:]))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive signature token")
		}
		sig = &ElectronicSignature{
			ID:                id.NewSignatureID(),
			DocumentVersionID: version.ID,
			UserID:            actor,
			Purpose:           purpose,
			SignatureHash:     hash,
			WorkflowStepID:    input.StepID,
			SignedAt:          now,
		}
		if input.Comment != "" {
			sig.Metadata = map[string]any{"comment": input.Comment}
		}
		if err := g.signatures.Create(txCtx, sig); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist signature")
		}

		metadata := map[string]any{"purpose": string(purpose)}
		if input.Comment != "" {
			metadata["comment"] = input.Comment
		}
		return g.audit.Record(txCtx, audit.Event{
			ActorID:           &actor,
			Action:            audit.ActionSignatureCaptured,
			EntityType:        audit.EntityDocumentVersion,
			EntityID:          version.ID.String(),
			DocumentID:        &version.DocumentID,
			DocumentVersionID: &version.ID,
			WorkflowRunID:     runID,
			Metadata:          metadata,
		})
	})
	if err != nil {
		return nil, err
	}

	if g.observer != nil {
		g.observer.SignatureCaptured()
	}
	g.logger.InfoContext(ctx, "signature captured",
		slog.String("signature_id", sig.ID.String()),
		slog.String("version_id", sig.DocumentVersionID.String()),
		slog.String("purpose", string(sig.Purpose)))
	return sig, nil
}

// verifyCredential re-checks the signer's password. A mismatch is audited in
// its own unit of work and counted against the lockout window; the audit
// event is the only write that survives a failed submission.
func (g *Gate) verifyCredential(ctx context.Context, input SubmitInput, actor id.UserID) error {
	_, err := g.identities.VerifyCredential(ctx, actor, input.Credential)
	if err == nil {
		if g.guard != nil {
			if resetErr := g.guard.Reset(ctx, actor); resetErr != nil {
				g.logger.WarnContext(ctx, "failed to reset signature lockout", slog.Any("error", resetErr))
			}
		}
		return nil
	}
	if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		return err
	}

	auditErr := g.audit.Record(ctx, audit.Event{
		ActorID:           &actor,
		Action:            audit.ActionSignatureRejected,
		EntityType:        audit.EntityDocumentVersion,
		EntityID:          input.VersionID.String(),
		DocumentVersionID: &input.VersionID,
		Metadata:          map[string]any{"reason": "invalid_credentials"},
	})
	if auditErr != nil {
		g.logger.ErrorContext(ctx, "failed to record signature rejection", slog.Any("error", auditErr))
	}
	if g.guard != nil {
		if locked, lockErr := g.guard.RegisterFailure(ctx, actor); lockErr != nil {
			g.logger.WarnContext(ctx, "failed to register signature failure", slog.Any("error", lockErr))
		} else if locked {
			g.logger.WarnContext(ctx, "signer locked out", slog.String("user_id", actor.String()))
		}
	}
	if g.observer != nil {
		g.observer.SignatureRejected()
	}
	return dErrors.New(dErrors.CodeSignatureRejected, "credential verification failed")
}

// completeStep authorizes the signer against the step, completes it and asks
// the orchestrator to advance the run. The run row is locked first so
// concurrent completions on the same run serialize. It runs before the
// signature row is written: a refusal or lost race must not mutate anything.
func (g *Gate) completeStep(ctx context.Context, stepID id.StepID, version *document.Version,
	purpose Purpose, actor id.UserID, actorRole identity.Role, comment string, signedAt time.Time) (id.RunID, error) {
	step, err := g.runs.FindStepByID(ctx, stepID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.RunID{}, dErrors.New(dErrors.CodeNotFound, "workflow step not found")
		}
		return id.RunID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow step")
	}
	if err := g.runs.LockRun(ctx, step.RunID); err != nil {
		return id.RunID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock workflow run")
	}
	// Reload under the lock; the pre-lock read may be stale.
	step, err = g.runs.FindStepByID(ctx, stepID)
	if err != nil {
		return id.RunID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload workflow step")
	}

	assigned := step.Assignee != nil && *step.Assignee == actor
	if !assigned && step.Role != actorRole {
		return id.RunID{}, dErrors.New(dErrors.CodeForbidden, "signer is neither the step assignee nor holder of its role")
	}

	if err := g.runs.CompleteStep(ctx, step.ID, version.ID, comment, signedAt); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return id.RunID{}, dErrors.New(dErrors.CodeConflict, "workflow step was already completed")
		}
		return id.RunID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete workflow step")
	}

	if _, err := g.orchestrator.Advance(ctx, step.RunID, purpose == PurposeApproval); err != nil {
		return id.RunID{}, err
	}
	return step.RunID, nil
}
