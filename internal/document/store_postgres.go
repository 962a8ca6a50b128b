package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists documents in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfNumberAvailable(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (
			id, title, number, category, security, type_id, status, lifecycle_state,
			current_version_id, effective_from, next_issue_date, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := tx.Runner(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(doc.ID), doc.Title, doc.Number, string(doc.Category), string(doc.Security),
		uuid.UUID(doc.TypeID), string(doc.Status), string(doc.LifecycleState),
		versionIDOrNil(doc.CurrentVersionID), doc.EffectiveFrom, doc.NextIssueDate,
		uuid.UUID(doc.CreatedBy), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, documentID id.DocumentID) (*Document, error) {
	query := documentSelect + ` WHERE id = $1`
	doc, err := scanDocument(tx.Runner(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(documentID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return doc, err
}

func (s *PostgresStore) Update(ctx context.Context, doc *Document) error {
	query := `
		UPDATE documents
		SET title = $2, category = $3, security = $4, status = $5, lifecycle_state = $6,
		    current_version_id = $7, effective_from = $8, next_issue_date = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := tx.Runner(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(doc.ID), doc.Title, string(doc.Category), string(doc.Security),
		string(doc.Status), string(doc.LifecycleState),
		versionIDOrNil(doc.CurrentVersionID), doc.EffectiveFrom, doc.NextIssueDate, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Document, error) {
	rows, err := tx.Runner(ctx, s.db).QueryContext(ctx, documentSelect+` ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

const documentSelect = `
	SELECT id, title, number, category, security, type_id, status, lifecycle_state,
	       current_version_id, effective_from, next_issue_date, created_by, created_at, updated_at
	FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc            Document
		docID, typeID  uuid.UUID
		createdBy      uuid.UUID
		currentVersion uuid.NullUUID
		effectiveFrom  sql.NullTime
		nextIssue      sql.NullTime
	)
	if err := row.Scan(&docID, &doc.Title, &doc.Number, &doc.Category, &doc.Security,
		&typeID, &doc.Status, &doc.LifecycleState, &currentVersion,
		&effectiveFrom, &nextIssue, &createdBy, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.ID = id.DocumentID(docID)
	doc.TypeID = id.DocumentTypeID(typeID)
	doc.CreatedBy = id.UserID(createdBy)
	if currentVersion.Valid {
		versionID := id.DocumentVersionID(currentVersion.UUID)
		doc.CurrentVersionID = &versionID
	}
	if effectiveFrom.Valid {
		doc.EffectiveFrom = &effectiveFrom.Time
	}
	if nextIssue.Valid {
		doc.NextIssueDate = &nextIssue.Time
	}
	return &doc, nil
}

func versionIDOrNil(versionID *id.DocumentVersionID) uuid.NullUUID {
	if versionID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*versionID), Valid: true}
}

// PostgresVersionStore persists document versions in PostgreSQL.
type PostgresVersionStore struct {
	db *sql.DB
}

func NewPostgresVersionStore(db *sql.DB) *PostgresVersionStore {
	return &PostgresVersionStore{db: db}
}

func (s *PostgresVersionStore) Create(ctx context.Context, version *Version) error {
	query := `
		INSERT INTO document_versions (
			id, document_id, version_label, issue_date, effective_from, next_issue_date,
			issuer_role, status, is_superseded, summary, change_note, content,
			created_by, issued_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := tx.Runner(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(version.ID), uuid.UUID(version.DocumentID), version.VersionLabel,
		version.IssueDate, version.EffectiveFrom, version.NextIssueDate,
		string(version.IssuerRole), string(version.Status), version.IsSuperseded,
		version.Summary, version.ChangeNote, version.Content,
		uuid.UUID(version.CreatedBy), uuid.UUID(version.IssuedBy), version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create document version: %w", err)
	}
	return nil
}

func (s *PostgresVersionStore) FindByID(ctx context.Context, versionID id.DocumentVersionID) (*Version, error) {
	query := versionSelect + ` WHERE id = $1`
	version, err := scanVersion(tx.Runner(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(versionID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return version, err
}

func (s *PostgresVersionStore) SupersedeOthers(ctx context.Context, documentID id.DocumentID, keep id.DocumentVersionID) error {
	query := `
		UPDATE document_versions
		SET is_superseded = TRUE
		WHERE document_id = $1 AND id <> $2
	`
	if _, err := tx.Runner(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(documentID), uuid.UUID(keep)); err != nil {
		return fmt.Errorf("supersede document versions: %w", err)
	}
	return nil
}

func (s *PostgresVersionStore) ListByDocument(ctx context.Context, documentID id.DocumentID) ([]*Version, error) {
	query := versionSelect + ` WHERE document_id = $1 ORDER BY created_at DESC`
	rows, err := tx.Runner(ctx, s.db).QueryContext(ctx, query, uuid.UUID(documentID))
	if err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	defer rows.Close()

	var versions []*Version
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

const versionSelect = `
	SELECT id, document_id, version_label, issue_date, effective_from, next_issue_date,
	       issuer_role, status, is_superseded, summary, change_note, content,
	       created_by, issued_by, created_at
	FROM document_versions`

func scanVersion(row rowScanner) (*Version, error) {
	var (
		version           Version
		versionID, docID  uuid.UUID
		createdBy, issued uuid.UUID
		issueDate         sql.NullTime
		effectiveFrom     sql.NullTime
		nextIssue         sql.NullTime
	)
	if err := row.Scan(&versionID, &docID, &version.VersionLabel,
		&issueDate, &effectiveFrom, &nextIssue,
		&version.IssuerRole, &version.Status, &version.IsSuperseded,
		&version.Summary, &version.ChangeNote, &version.Content,
		&createdBy, &issued, &version.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan document version: %w", err)
	}
	version.ID = id.DocumentVersionID(versionID)
	version.DocumentID = id.DocumentID(docID)
	version.CreatedBy = id.UserID(createdBy)
	version.IssuedBy = id.UserID(issued)
	if issueDate.Valid {
		version.IssueDate = &issueDate.Time
	}
	if effectiveFrom.Valid {
		version.EffectiveFrom = &effectiveFrom.Time
	}
	if nextIssue.Valid {
		version.NextIssueDate = &nextIssue.Time
	}
	return &version, nil
}

// PostgresTypeStore persists document type reference data in PostgreSQL.
type PostgresTypeStore struct {
	db *sql.DB
}

func NewPostgresTypeStore(db *sql.DB) *PostgresTypeStore {
	return &PostgresTypeStore{db: db}
}

func (s *PostgresTypeStore) CreateIfNameAvailable(ctx context.Context, docType *Type) error {
	query := `
		INSERT INTO document_types (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.Runner(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(docType.ID), docType.Name, docType.Description, docType.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create document type: %w", err)
	}
	return nil
}

func (s *PostgresTypeStore) FindByID(ctx context.Context, typeID id.DocumentTypeID) (*Type, error) {
	query := `SELECT id, name, description, created_at FROM document_types WHERE id = $1`
	var (
		docType Type
		rawID   uuid.UUID
	)
	err := tx.Runner(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(typeID)).
		Scan(&rawID, &docType.Name, &docType.Description, &docType.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document type: %w", err)
	}
	docType.ID = id.DocumentTypeID(rawID)
	return &docType, nil
}

func (s *PostgresTypeStore) List(ctx context.Context) ([]*Type, error) {
	query := `SELECT id, name, description, created_at FROM document_types ORDER BY name ASC`
	rows, err := tx.Runner(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list document types: %w", err)
	}
	defer rows.Close()

	var types []*Type
	for rows.Next() {
		var (
			docType Type
			rawID   uuid.UUID
		)
		if err := rows.Scan(&rawID, &docType.Name, &docType.Description, &docType.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document type: %w", err)
		}
		docType.ID = id.DocumentTypeID(rawID)
		types = append(types, &docType)
	}
	return types, rows.Err()
}
