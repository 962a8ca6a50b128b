package identity

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

// PostgresStore persists user accounts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfEmailAvailable(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, name, email, role, password_hash, is_active, created_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7)
	`
	_, err := tx.Runner(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(user.ID), user.Name, user.Email, string(user.Role),
		user.PasswordHash, user.IsActive, user.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*User, error) {
	query := userSelect + ` WHERE id = $1`
	return scanUser(tx.Runner(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(userID)))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := userSelect + ` WHERE email = lower($1)`
	return scanUser(tx.Runner(ctx, s.db).QueryRowContext(ctx, query, email))
}

func (s *PostgresStore) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET name = $2, role = $3, password_hash = $4, is_active = $5, last_login_at = $6
		WHERE id = $1
	`
	res, err := tx.Runner(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(user.ID), user.Name, string(user.Role),
		user.PasswordHash, user.IsActive, user.LastLoginAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*User, error) {
	rows, err := tx.Runner(ctx, s.db).QueryContext(ctx, userSelect+` ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

const userSelect = `
	SELECT id, name, email, role, password_hash, is_active, last_login_at, created_at
	FROM users`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row *sql.Row) (*User, error) {
	user, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return user, err
}

func scanUserRow(row rowScanner) (*User, error) {
	var (
		user      User
		userID    uuid.UUID
		lastLogin sql.NullTime
	)
	if err := row.Scan(&userID, &user.Name, &user.Email, &user.Role,
		&user.PasswordHash, &user.IsActive, &lastLogin, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.ID = id.UserID(userID)
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	return &user, nil
}
