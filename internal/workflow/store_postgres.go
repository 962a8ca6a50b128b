package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"doccontrol/internal/document"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/platform/tx"
)

// PostgresTemplateStore persists workflow templates in PostgreSQL.
type PostgresTemplateStore struct {
	db *sql.DB
}

func NewPostgresTemplateStore(db *sql.DB) *PostgresTemplateStore {
	return &PostgresTemplateStore{db: db}
}

func (s *PostgresTemplateStore) Create(ctx context.Context, template *Template) error {
	runner := tx.Runner(ctx, s.db)
	query := `
		INSERT INTO workflow_templates (id, name, category, is_default, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := runner.ExecContext(ctx, query,
		uuid.UUID(template.ID), template.Name, string(template.Category),
		template.IsDefault, uuid.UUID(template.CreatedBy), template.CreatedAt); err != nil {
		return fmt.Errorf("create workflow template: %w", err)
	}

	stepQuery := `
		INSERT INTO workflow_template_steps (
			id, template_id, step_order, role, step_type, require_signature, sla_hours
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, step := range template.Steps {
		if _, err := runner.ExecContext(ctx, stepQuery,
			uuid.UUID(step.ID), uuid.UUID(template.ID), step.Order,
			string(step.Role), string(step.StepType), step.RequireSignature, step.SLAHours); err != nil {
			return fmt.Errorf("create template step: %w", err)
		}
	}
	return nil
}

func (s *PostgresTemplateStore) FindByID(ctx context.Context, templateID id.TemplateID) (*Template, error) {
	runner := tx.Runner(ctx, s.db)
	query := `
		SELECT id, name, category, is_default, created_by, created_at
		FROM workflow_templates
		WHERE id = $1
	`
	template, err := scanTemplate(runner.QueryRowContext(ctx, query, uuid.UUID(templateID)))
	if err != nil {
		return nil, err
	}

	stepQuery := `
		SELECT id, template_id, step_order, role, step_type, require_signature, sla_hours
		FROM workflow_template_steps
		WHERE template_id = $1
		ORDER BY step_order ASC
	`
	rows, err := runner.QueryContext(ctx, stepQuery, uuid.UUID(templateID))
	if err != nil {
		return nil, fmt.Errorf("load template steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		step, err := scanTemplateStep(rows)
		if err != nil {
			return nil, err
		}
		template.Steps = append(template.Steps, *step)
	}
	return template, rows.Err()
}

func (s *PostgresTemplateStore) List(ctx context.Context) ([]*Template, error) {
	runner := tx.Runner(ctx, s.db)
	query := `
		SELECT id, name, category, is_default, created_by, created_at
		FROM workflow_templates
		ORDER BY name ASC
	`
	rows, err := runner.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list workflow templates: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	byID := make(map[id.TemplateID]*Template)
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
		byID[template.ID] = template
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stepQuery := `
		SELECT id, template_id, step_order, role, step_type, require_signature, sla_hours
		FROM workflow_template_steps
		ORDER BY template_id, step_order ASC
	`
	stepRows, err := runner.QueryContext(ctx, stepQuery)
	if err != nil {
		return nil, fmt.Errorf("list template steps: %w", err)
	}
	defer stepRows.Close()

	for stepRows.Next() {
		step, err := scanTemplateStep(stepRows)
		if err != nil {
			return nil, err
		}
		if template, ok := byID[step.TemplateID]; ok {
			template.Steps = append(template.Steps, *step)
		}
	}
	return templates, stepRows.Err()
}

func (s *PostgresTemplateStore) ClearDefaultExcept(ctx context.Context, category document.Category, keep id.TemplateID) error {
	query := `
		UPDATE workflow_templates
		SET is_default = FALSE
		WHERE category = $1 AND id <> $2
	`
	if _, err := tx.Runner(ctx, s.db).ExecContext(ctx, query,
		string(category), uuid.UUID(keep)); err != nil {
		return fmt.Errorf("clear default templates: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*Template, error) {
	var (
		template            Template
		templateID, created uuid.UUID
	)
	if err := row.Scan(&templateID, &template.Name, &template.Category,
		&template.IsDefault, &created, &template.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan workflow template: %w", err)
	}
	template.ID = id.TemplateID(templateID)
	template.CreatedBy = id.UserID(created)
	return &template, nil
}

func scanTemplateStep(row rowScanner) (*TemplateStep, error) {
	var (
		step               TemplateStep
		stepID, templateID uuid.UUID
	)
	if err := row.Scan(&stepID, &templateID, &step.Order, &step.Role,
		&step.StepType, &step.RequireSignature, &step.SLAHours); err != nil {
		return nil, fmt.Errorf("scan template step: %w", err)
	}
	step.ID = id.TemplateStepID(stepID)
	step.TemplateID = id.TemplateID(templateID)
	return &step, nil
}

// PostgresRunStore persists workflow runs and steps in PostgreSQL. LockRun
// takes a FOR UPDATE row lock on the run so concurrent completions on the
// same run serialize; it must run inside a transaction.
type PostgresRunStore struct {
	db *sql.DB
}

func NewPostgresRunStore(db *sql.DB) *PostgresRunStore {
	return &PostgresRunStore{db: db}
}

func (s *PostgresRunStore) Create(ctx context.Context, run *Run, steps []*Step) error {
	runner := tx.Runner(ctx, s.db)
	query := `
		INSERT INTO workflow_runs (id, document_id, template_id, status, current_step, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := runner.ExecContext(ctx, query,
		uuid.UUID(run.ID), uuid.UUID(run.DocumentID), templateIDOrNil(run.TemplateID),
		string(run.Status), run.CurrentStep, run.StartedAt, run.CompletedAt); err != nil {
		return fmt.Errorf("create workflow run: %w", err)
	}

	stepQuery := `
		INSERT INTO workflow_steps (
			id, run_id, step_order, role, step_type, status,
			assignee, document_version_id, comments, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, step := range steps {
		if _, err := runner.ExecContext(ctx, stepQuery,
			uuid.UUID(step.ID), uuid.UUID(run.ID), step.Order,
			string(step.Role), string(step.StepType), string(step.Status),
			userIDOrNil(step.Assignee), versionIDOrNil(step.DocumentVersionID),
			step.Comments, step.CompletedAt); err != nil {
			return fmt.Errorf("create workflow step: %w", err)
		}
	}
	return nil
}

func (s *PostgresRunStore) LoadRunWithSteps(ctx context.Context, runID id.RunID) (*Run, []*Step, error) {
	runner := tx.Runner(ctx, s.db)
	run, err := scanRun(runner.QueryRowContext(ctx, runSelect+` WHERE id = $1`, uuid.UUID(runID)))
	if err != nil {
		return nil, nil, err
	}

	rows, err := runner.QueryContext(ctx, stepSelect+` WHERE run_id = $1 ORDER BY step_order ASC`, uuid.UUID(runID))
	if err != nil {
		return nil, nil, fmt.Errorf("load workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, nil, err
		}
		steps = append(steps, step)
	}
	return run, steps, rows.Err()
}

func (s *PostgresRunStore) ListByDocument(ctx context.Context, documentID id.DocumentID) ([]*Run, error) {
	query := runSelect + ` WHERE document_id = $1 ORDER BY started_at DESC`
	rows, err := tx.Runner(ctx, s.db).QueryContext(ctx, query, uuid.UUID(documentID))
	if err != nil {
		return nil, fmt.Errorf("list workflow runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresRunStore) UpdateRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE workflow_runs
		SET status = $2, current_step = $3, completed_at = $4
		WHERE id = $1
	`
	res, err := tx.Runner(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(run.ID), string(run.Status), run.CurrentStep, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("update workflow run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update workflow run: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresRunStore) LockRun(ctx context.Context, runID id.RunID) error {
	query := `SELECT id FROM workflow_runs WHERE id = $1 FOR UPDATE`
	var locked uuid.UUID
	err := tx.Runner(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(runID)).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock workflow run: %w", err)
	}
	return nil
}

func (s *PostgresRunStore) FindStepByID(ctx context.Context, stepID id.StepID) (*Step, error) {
	query := stepSelect + ` WHERE id = $1`
	step, err := scanStep(tx.Runner(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(stepID)))
	if err != nil {
		return nil, err
	}
	return step, nil
}

func (s *PostgresRunStore) AssignStep(ctx context.Context, stepID id.StepID, assignee id.UserID) error {
	query := `UPDATE workflow_steps SET assignee = $2 WHERE id = $1`
	res, err := tx.Runner(ctx, s.db).ExecContext(ctx, query, uuid.UUID(stepID), uuid.UUID(assignee))
	if err != nil {
		return fmt.Errorf("assign workflow step: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign workflow step: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresRunStore) CompleteStep(ctx context.Context, stepID id.StepID, versionID id.DocumentVersionID, comment string, completedAt time.Time) error {
	query := `
		UPDATE workflow_steps
		SET status = 'COMPLETED', document_version_id = $2, comments = $3, completed_at = $4
		WHERE id = $1 AND status <> 'COMPLETED' AND document_version_id IS NULL
	`
	res, err := tx.Runner(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(stepID), uuid.UUID(versionID), comment, completedAt)
	if err != nil {
		return fmt.Errorf("complete workflow step: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete workflow step: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresRunStore) MarkStepInProgress(ctx context.Context, stepID id.StepID) error {
	query := `
		UPDATE workflow_steps
		SET status = 'IN_PROGRESS'
		WHERE id = $1 AND status = 'PENDING'
	`
	if _, err := tx.Runner(ctx, s.db).ExecContext(ctx, query, uuid.UUID(stepID)); err != nil {
		return fmt.Errorf("mark workflow step in progress: %w", err)
	}
	return nil
}

func (s *PostgresRunStore) CountPendingSteps(ctx context.Context, runID id.RunID) (int, error) {
	query := `SELECT COUNT(*) FROM workflow_steps WHERE run_id = $1 AND status = 'PENDING'`
	var count int
	if err := tx.Runner(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(runID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending steps: %w", err)
	}
	return count, nil
}

const runSelect = `
	SELECT id, document_id, template_id, status, current_step, started_at, completed_at
	FROM workflow_runs`

const stepSelect = `
	SELECT id, run_id, step_order, role, step_type, status,
	       assignee, document_version_id, comments, completed_at
	FROM workflow_steps`

func scanRun(row rowScanner) (*Run, error) {
	var (
		run          Run
		runID, docID uuid.UUID
		templateID   uuid.NullUUID
		completedAt  sql.NullTime
	)
	if err := row.Scan(&runID, &docID, &templateID, &run.Status,
		&run.CurrentStep, &run.StartedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan workflow run: %w", err)
	}
	run.ID = id.RunID(runID)
	run.DocumentID = id.DocumentID(docID)
	if templateID.Valid {
		tid := id.TemplateID(templateID.UUID)
		run.TemplateID = &tid
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

func scanStep(row rowScanner) (*Step, error) {
	var (
		step          Step
		stepID, runID uuid.UUID
		assignee      uuid.NullUUID
		versionID     uuid.NullUUID
		completedAt   sql.NullTime
	)
	if err := row.Scan(&stepID, &runID, &step.Order, &step.Role, &step.StepType,
		&step.Status, &assignee, &versionID, &step.Comments, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan workflow step: %w", err)
	}
	step.ID = id.StepID(stepID)
	step.RunID = id.RunID(runID)
	if assignee.Valid {
		userID := id.UserID(assignee.UUID)
		step.Assignee = &userID
	}
	if versionID.Valid {
		vid := id.DocumentVersionID(versionID.UUID)
		step.DocumentVersionID = &vid
	}
	if completedAt.Valid {
		step.CompletedAt = &completedAt.Time
	}
	return &step, nil
}

func templateIDOrNil(templateID *id.TemplateID) uuid.NullUUID {
	if templateID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*templateID), Valid: true}
}

func userIDOrNil(userID *id.UserID) uuid.NullUUID {
	if userID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*userID), Valid: true}
}

func versionIDOrNil(versionID *id.DocumentVersionID) uuid.NullUUID {
	if versionID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*versionID), Valid: true}
}
