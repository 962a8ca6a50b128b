package identity

import (
	"time"

	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

// Role gates which workflow steps a user may sign and which routes the
// transport layer lets them call.
type Role string

const (
	RoleAdmin              Role = "ADMIN"
	RoleQAManager          Role = "QA_MANAGER"
	RoleQA                 Role = "QA"
	RoleDocumentController Role = "DOCUMENT_CONTROLLER"
	RoleAuthor             Role = "AUTHOR"
	RoleReviewer           Role = "REVIEWER"
	RoleApprover           Role = "APPROVER"
	RoleViewer             Role = "VIEWER"
)

var validRoles = map[Role]struct{}{
	RoleAdmin: {}, RoleQAManager: {}, RoleQA: {}, RoleDocumentController: {},
	RoleAuthor: {}, RoleReviewer: {}, RoleApprover: {}, RoleViewer: {},
}

// ParseRole validates a role string at the trust boundary.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if _, ok := validRoles[role]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown role %q", raw)
	}
	return role, nil
}

func (r Role) String() string { return string(r) }

// User is a signer or administrator account. PasswordHash is the stored
// bcrypt credential the signature gate re-verifies on every submission.
type User struct {
	ID           id.UserID
	Name         string
	Email        string
	Role         Role
	PasswordHash string
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}
