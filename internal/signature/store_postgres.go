package signature

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/tx"
)

// PostgresStore persists electronic signatures in PostgreSQL. The table is
// append-only; there is no update or delete path.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, sig *ElectronicSignature) error {
	metadata, err := json.Marshal(sig.Metadata)
	if err != nil {
		return fmt.Errorf("marshal signature metadata: %w", err)
	}
	query := `
		INSERT INTO electronic_signatures (
			id, document_version_id, user_id, purpose, signature_hash,
			workflow_step_id, metadata, signed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.Runner(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(sig.ID), uuid.UUID(sig.DocumentVersionID), uuid.UUID(sig.UserID),
		string(sig.Purpose), sig.SignatureHash, stepIDOrNil(sig.WorkflowStepID),
		metadata, sig.SignedAt); err != nil {
		return fmt.Errorf("create signature: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByVersion(ctx context.Context, versionID id.DocumentVersionID) ([]*ElectronicSignature, error) {
	query := `
		SELECT id, document_version_id, user_id, purpose, signature_hash,
		       workflow_step_id, metadata, signed_at
		FROM electronic_signatures
		WHERE document_version_id = $1
		ORDER BY signed_at DESC
	`
	rows, err := tx.Runner(ctx, s.db).QueryContext(ctx, query, uuid.UUID(versionID))
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	defer rows.Close()

	var signatures []*ElectronicSignature
	for rows.Next() {
		var (
			sig           ElectronicSignature
			sigID         uuid.UUID
			verID, userID uuid.UUID
			stepID        uuid.NullUUID
			metadata      []byte
		)
		if err := rows.Scan(&sigID, &verID, &userID, &sig.Purpose, &sig.SignatureHash,
			&stepID, &metadata, &sig.SignedAt); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		sig.ID = id.SignatureID(sigID)
		sig.DocumentVersionID = id.DocumentVersionID(verID)
		sig.UserID = id.UserID(userID)
		if stepID.Valid {
			sid := id.StepID(stepID.UUID)
			sig.WorkflowStepID = &sid
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &sig.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal signature metadata: %w", err)
			}
		}
		signatures = append(signatures, &sig)
	}
	return signatures, rows.Err()
}

func stepIDOrNil(stepID *id.StepID) uuid.NullUUID {
	if stepID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*stepID), Valid: true}
}
