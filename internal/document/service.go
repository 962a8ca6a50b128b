package document

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"doccontrol/internal/audit"
	"doccontrol/internal/identity"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/platform/storetx"
	"doccontrol/pkg/requestcontext"
)

// WorkflowStarter instantiates a workflow run for a freshly created document.
// It is called inside the document-creation unit of work so the run commits
// or rolls back with the document.
type WorkflowStarter interface {
	InstantiateRun(ctx context.Context, documentID id.DocumentID, templateID id.TemplateID) (id.RunID, error)
}

// Observer receives creation notifications for counters.
type Observer interface {
	DocumentCreated()
	VersionCreated()
}

// Service owns document and document-version records: creation, superseding
// and status/lifecycle transitions. Workflow-driven finalization enters
// through FinalizeWorkflow.
type Service struct {
	documents Store
	versions  VersionStore
	types     TypeStore
	workflows WorkflowStarter
	audit     audit.Recorder
	tx        storetx.StoreTx
	logger    *slog.Logger
	observer  Observer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(s *Service) { s.observer = observer }
}

// WithWorkflowStarter wires the orchestrator in after construction; the two
// services reference each other so one side has to be attached late.
func WithWorkflowStarter(starter WorkflowStarter) Option {
	return func(s *Service) { s.workflows = starter }
}

func NewService(documents Store, versions VersionStore, types TypeStore,
	recorder audit.Recorder, tx storetx.StoreTx, opts ...Option) *Service {
	svc := &Service{
		documents: documents,
		versions:  versions,
		types:     types,
		audit:     recorder,
		tx:        tx,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// SetWorkflowStarter attaches the orchestrator after both services exist.
func (s *Service) SetWorkflowStarter(starter WorkflowStarter) {
	s.workflows = starter
}

// CreateDocumentInput carries everything needed for a document plus its first
// version. TemplateID, when set, causes a workflow run to be instantiated in
// the same unit of work.
type CreateDocumentInput struct {
	Title         string
	Number        string
	Category      string
	Security      string
	TypeID        id.DocumentTypeID
	TemplateID    *id.TemplateID
	VersionLabel  string
	Content       string
	Summary       string
	EffectiveFrom *time.Time
	NextIssueDate *time.Time
}

func (s *Service) CreateDocument(ctx context.Context, input CreateDocumentInput, actor id.UserID, actorRole identity.Role) (*Document, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Number = strings.TrimSpace(input.Number)
	if input.Title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if input.Number == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document number is required")
	}
	category, err := ParseCategory(input.Category)
	if err != nil {
		return nil, err
	}
	security, err := ParseSecurity(input.Security)
	if err != nil {
		return nil, err
	}
	if input.VersionLabel == "" {
		input.VersionLabel = "1.0"
	}

	now := requestcontext.Now(ctx)
	doc := &Document{
		ID:             id.NewDocumentID(),
		Title:          input.Title,
		Number:         input.Number,
		Category:       category,
		Security:       security,
		TypeID:         input.TypeID,
		Status:         StatusDraft,
		LifecycleState: LifecycleDraft,
		EffectiveFrom:  input.EffectiveFrom,
		NextIssueDate:  input.NextIssueDate,
		CreatedBy:      actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	version := &Version{
		ID:            id.NewDocumentVersionID(),
		DocumentID:    doc.ID,
		VersionLabel:  input.VersionLabel,
		EffectiveFrom: input.EffectiveFrom,
		NextIssueDate: input.NextIssueDate,
		IssuerRole:    actorRole,
		Status:        StatusDraft,
		Summary:       input.Summary,
		Content:       input.Content,
		CreatedBy:     actor,
		IssuedBy:      actor,
		CreatedAt:     now,
	}
	doc.CurrentVersionID = &version.ID

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.types.FindByID(txCtx, input.TypeID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "document type not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document type")
		}
		if err := s.documents.CreateIfNumberAvailable(txCtx, doc); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "document number is already in use")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create document")
		}
		if err := s.versions.Create(txCtx, version); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create first version")
		}

		metadata := map[string]any{
			"number":   doc.Number,
			"title":    doc.Title,
			"category": string(doc.Category),
		}
		if input.TemplateID != nil {
			if s.workflows == nil {
				return dErrors.New(dErrors.CodeInvalidInput, "workflow templates are not enabled")
			}
			runID, err := s.workflows.InstantiateRun(txCtx, doc.ID, *input.TemplateID)
			if err != nil {
				return err
			}
			metadata["workflow_run_id"] = runID.String()
		}

		return s.audit.Record(txCtx, audit.Event{
			ActorID:           &actor,
			Action:            audit.ActionDocumentCreated,
			EntityType:        audit.EntityDocument,
			EntityID:          doc.ID.String(),
			DocumentID:        &doc.ID,
			DocumentVersionID: &version.ID,
			Metadata:          metadata,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.observer != nil {
		s.observer.DocumentCreated()
	}
	s.logger.InfoContext(ctx, "document created",
		slog.String("document_id", doc.ID.String()),
		slog.String("number", doc.Number))
	return doc, nil
}

// CreateVersionInput describes a new revision of an existing document.
type CreateVersionInput struct {
	VersionLabel  string
	Content       string
	Summary       string
	ChangeNote    string
	EffectiveFrom *time.Time
	NextIssueDate *time.Time
}

// CreateVersion supersedes every prior version and returns the document to
// DRAFT status with lifecycle UNDER_REVISION.
func (s *Service) CreateVersion(ctx context.Context, documentID id.DocumentID, input CreateVersionInput, actor id.UserID, actorRole identity.Role) (*Version, error) {
	if strings.TrimSpace(input.VersionLabel) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "version label is required")
	}

	var created *Version
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := s.documents.FindByID(txCtx, documentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "document not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
		}

		now := requestcontext.Now(txCtx)
		version := &Version{
			ID:            id.NewDocumentVersionID(),
			DocumentID:    doc.ID,
			VersionLabel:  strings.TrimSpace(input.VersionLabel),
			EffectiveFrom: input.EffectiveFrom,
			NextIssueDate: input.NextIssueDate,
			IssuerRole:    actorRole,
			Status:        StatusDraft,
			Summary:       input.Summary,
			ChangeNote:    input.ChangeNote,
			Content:       input.Content,
			CreatedBy:     actor,
			IssuedBy:      actor,
			CreatedAt:     now,
		}
		if err := s.versions.Create(txCtx, version); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create version")
		}
		if err := s.versions.SupersedeOthers(txCtx, doc.ID, version.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to supersede prior versions")
		}

		doc.CurrentVersionID = &version.ID
		doc.Status = StatusDraft
		doc.LifecycleState = LifecycleUnderRevision
		doc.UpdatedAt = now
		if err := s.documents.Update(txCtx, doc); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update document")
		}

		created = version
		return s.audit.Record(txCtx, audit.Event{
			ActorID:           &actor,
			Action:            audit.ActionDocumentVersionCreated,
			EntityType:        audit.EntityDocumentVersion,
			EntityID:          version.ID.String(),
			DocumentID:        &doc.ID,
			DocumentVersionID: &version.ID,
			Metadata: map[string]any{
				"version_label": version.VersionLabel,
				"change_note":   version.ChangeNote,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if s.observer != nil {
		s.observer.VersionCreated()
	}
	return created, nil
}

// UpdateDocumentPatch is an administrative override: nil fields are left
// untouched, set fields are applied without workflow gating.
type UpdateDocumentPatch struct {
	Title          *string
	Category       *string
	Security       *string
	Status         *string
	LifecycleState *string
	EffectiveFrom  *time.Time
	NextIssueDate  *time.Time
}

func (s *Service) UpdateDocument(ctx context.Context, documentID id.DocumentID, patch UpdateDocumentPatch, actor id.UserID) (*Document, error) {
	var updated *Document
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := s.documents.FindByID(txCtx, documentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "document not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
		}

		metadata := map[string]any{}
		if patch.Title != nil {
			doc.Title = strings.TrimSpace(*patch.Title)
			metadata["title"] = doc.Title
		}
		if patch.Category != nil {
			category, err := ParseCategory(*patch.Category)
			if err != nil {
				return err
			}
			doc.Category = category
			metadata["category"] = string(category)
		}
		if patch.Security != nil {
			security, err := ParseSecurity(*patch.Security)
			if err != nil {
				return err
			}
			doc.Security = security
			metadata["security"] = string(security)
		}
		if patch.Status != nil {
			status, err := ParseStatus(*patch.Status)
			if err != nil {
				return err
			}
			doc.Status = status
			metadata["status"] = string(status)
		}
		if patch.LifecycleState != nil {
			state, err := ParseLifecycleState(*patch.LifecycleState)
			if err != nil {
				return err
			}
			doc.LifecycleState = state
			metadata["lifecycle_state"] = string(state)
		}
		if patch.EffectiveFrom != nil {
			doc.EffectiveFrom = patch.EffectiveFrom
			metadata["effective_from"] = patch.EffectiveFrom.Format(time.RFC3339)
		}
		if patch.NextIssueDate != nil {
			doc.NextIssueDate = patch.NextIssueDate
			metadata["next_issue_date"] = patch.NextIssueDate.Format(time.RFC3339)
		}

		doc.UpdatedAt = requestcontext.Now(txCtx)
		if err := s.documents.Update(txCtx, doc); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update document")
		}
		updated = doc
		return s.audit.Record(txCtx, audit.Event{
			ActorID:    &actor,
			Action:     audit.ActionDocumentUpdated,
			EntityType: audit.EntityDocument,
			EntityID:   doc.ID.String(),
			DocumentID: &doc.ID,
			Metadata:   metadata,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FinalizeWorkflow is the workflow-completion cascade target. It runs inside
// the caller's unit of work: approved selects APPROVED status, anything else
// EFFECTIVE; lifecycle lands on EFFECTIVE either way.
func (s *Service) FinalizeWorkflow(ctx context.Context, documentID id.DocumentID, approved bool) error {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	if approved {
		doc.Status = StatusApproved
	} else {
		doc.Status = StatusEffective
	}
	doc.LifecycleState = LifecycleEffective
	doc.UpdatedAt = requestcontext.Now(ctx)
	if err := s.documents.Update(ctx, doc); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize document")
	}
	return nil
}

func (s *Service) GetDocument(ctx context.Context, documentID id.DocumentID) (*Document, error) {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	return doc, nil
}

func (s *Service) GetVersion(ctx context.Context, versionID id.DocumentVersionID) (*Version, error) {
	version, err := s.versions.FindByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document version not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document version")
	}
	return version, nil
}

func (s *Service) ListDocuments(ctx context.Context) ([]*Document, error) {
	docs, err := s.documents.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	return docs, nil
}

func (s *Service) ListVersions(ctx context.Context, documentID id.DocumentID) ([]*Version, error) {
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	versions, err := s.versions.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list document versions")
	}
	return versions, nil
}

// CreateTypeInput is reference data: a named kind of controlled document.
type CreateTypeInput struct {
	Name        string
	Description string
}

func (s *Service) CreateType(ctx context.Context, input CreateTypeInput, actor id.UserID) (*Type, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document type name is required")
	}

	docType := &Type{
		ID:          id.NewDocumentTypeID(),
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   requestcontext.Now(ctx),
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.types.CreateIfNameAvailable(txCtx, docType); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "document type name is already in use")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create document type")
		}
		return s.audit.Record(txCtx, audit.Event{
			ActorID:    &actor,
			Action:     audit.ActionDocumentTypeCreated,
			EntityType: audit.EntityConfig,
			EntityID:   docType.ID.String(),
			Metadata:   map[string]any{"name": docType.Name},
		})
	})
	if err != nil {
		return nil, err
	}
	return docType, nil
}

func (s *Service) ListTypes(ctx context.Context) ([]*Type, error) {
	types, err := s.types.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list document types")
	}
	return types, nil
}
