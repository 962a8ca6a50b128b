package identity

import (
	"context"

	id "doccontrol/pkg/domain"
)

// Store persists user accounts. CreateIfEmailAvailable enforces email
// uniqueness atomically so two concurrent creates cannot both succeed.
type Store interface {
	CreateIfEmailAvailable(ctx context.Context, user *User) error
	FindByID(ctx context.Context, userID id.UserID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	List(ctx context.Context) ([]*User, error)
}
