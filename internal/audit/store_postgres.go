package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/tx"
)

// PostgresStore persists audit events. Rows are append-only: no UPDATE or
// DELETE statements exist in this file on purpose.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, actor_id, action, entity_type, entity_id,
			document_id, document_version_id, workflow_run_id,
			metadata, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.Runner(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		userIDOrNil(event.ActorID),
		string(event.Action),
		string(event.EntityType),
		event.EntityID,
		docIDOrNil(event.DocumentID),
		versionIDOrNil(event.DocumentVersionID),
		runIDOrNil(event.WorkflowRunID),
		metadata,
		nullable(event.IPAddress),
		nullable(event.UserAgent),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, actor_id, action, entity_type, entity_id,
		       document_id, document_version_id, workflow_run_id,
		       metadata, ip_address, user_agent, created_at
		FROM audit_events
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := tx.Runner(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) ListByDocument(ctx context.Context, documentID id.DocumentID, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, actor_id, action, entity_type, entity_id,
		       document_id, document_version_id, workflow_run_id,
		       metadata, ip_address, user_agent, created_at
		FROM audit_events
		WHERE document_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := tx.Runner(ctx, s.db).QueryContext(ctx, query, uuid.UUID(documentID), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events by document: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			event     Event
			eventID   uuid.UUID
			actorID   uuid.NullUUID
			docID     uuid.NullUUID
			versionID uuid.NullUUID
			runID     uuid.NullUUID
			metadata  []byte
			ipAddress sql.NullString
			userAgent sql.NullString
		)
		if err := rows.Scan(
			&eventID, &actorID, &event.Action, &event.EntityType, &event.EntityID,
			&docID, &versionID, &runID,
			&metadata, &ipAddress, &userAgent, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.ID = id.EventID(eventID)
		if actorID.Valid {
			actor := id.UserID(actorID.UUID)
			event.ActorID = &actor
		}
		if docID.Valid {
			d := id.DocumentID(docID.UUID)
			event.DocumentID = &d
		}
		if versionID.Valid {
			v := id.DocumentVersionID(versionID.UUID)
			event.DocumentVersionID = &v
		}
		if runID.Valid {
			r := id.RunID(runID.UUID)
			event.WorkflowRunID = &r
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		event.IPAddress = ipAddress.String
		event.UserAgent = userAgent.String
		events = append(events, event)
	}
	return events, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func userIDOrNil(v *id.UserID) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

func docIDOrNil(v *id.DocumentID) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

func versionIDOrNil(v *id.DocumentVersionID) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

func runIDOrNil(v *id.RunID) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}
