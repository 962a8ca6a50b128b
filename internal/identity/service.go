package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"doccontrol/internal/audit"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/secrets"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/platform/storetx"
	"doccontrol/pkg/requestcontext"
)

// Service owns user account administration and credential verification. The
// signature gate calls VerifyCredential on every submission; nothing here
// issues sessions.
type Service struct {
	users  Store
	audit  audit.Recorder
	tx     storetx.StoreTx
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(users Store, recorder audit.Recorder, tx storetx.StoreTx, opts ...Option) *Service {
	svc := &Service{
		users:  users,
		audit:  recorder,
		tx:     tx,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateUserInput arrives pre-validated for shape; the service enforces
// domain rules (role membership, password length, email uniqueness).
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func (s *Service) CreateUser(ctx context.Context, input CreateUserInput, actor id.UserID) (*User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if len(input.Name) < 3 {
		return nil, dErrors.New(dErrors.CodeValidation, "name must be at least 3 characters")
	}
	if !strings.Contains(input.Email, "@") {
		return nil, dErrors.New(dErrors.CodeValidation, "email is malformed")
	}
	if len(input.Password) < 12 {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be at least 12 characters")
	}
	role, err := ParseRole(input.Role)
	if err != nil {
		return nil, err
	}

	hash, err := secrets.Hash(input.Password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user := &User{
		ID:           id.NewUserID(),
		Name:         input.Name,
		Email:        input.Email,
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    requestcontext.Now(ctx),
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.CreateIfEmailAvailable(txCtx, user); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "email is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
		}
		return s.audit.Record(txCtx, audit.Event{
			ActorID:    &actor,
			Action:     audit.ActionUserCreated,
			EntityType: audit.EntityUser,
			EntityID:   user.ID.String(),
			Metadata: map[string]any{
				"role":  string(user.Role),
				"email": user.Email,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserInput patches status and role; nil fields are left untouched.
type UpdateUserInput struct {
	IsActive *bool
	Role     *string
}

func (s *Service) UpdateUser(ctx context.Context, userID id.UserID, input UpdateUserInput, actor id.UserID) (*User, error) {
	var updated *User
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.FindByID(txCtx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "user not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
		}

		metadata := map[string]any{}
		if input.IsActive != nil {
			user.IsActive = *input.IsActive
			metadata["is_active"] = *input.IsActive
		}
		if input.Role != nil {
			role, err := ParseRole(*input.Role)
			if err != nil {
				return err
			}
			user.Role = role
			metadata["role"] = string(role)
		}

		if err := s.users.Update(txCtx, user); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
		}
		updated = user
		return s.audit.Record(txCtx, audit.Event{
			ActorID:    &actor,
			Action:     audit.ActionUserUpdated,
			EntityType: audit.EntityUser,
			EntityID:   user.ID.String(),
			Metadata:   metadata,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, nil
}

func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// VerifyCredential re-verifies a signer's password against the stored hash.
// Inactive accounts fail closed regardless of the credential.
func (s *Service) VerifyCredential(ctx context.Context, userID id.UserID, password string) (*User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.IsActive {
		return nil, dErrors.New(dErrors.CodeForbidden, "user account is deactivated")
	}
	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return user, nil
}
