package ports

import (
	"context"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
)

// NewUser carries the arguments of the atomic user-creation call.
type NewUser struct {
	FirstName    string
	LastName     *string
	Email        string
	PasswordHash string
	RoleID       int64
}

// CreateUserOutcome mirrors the two output values of the creation procedure.
// DuplicateEmail is set when the store recognised a uniqueness violation on email.
type CreateUserOutcome struct {
	Success        bool
	Message        string
	DuplicateEmail bool
}

// AuthRepository is the credential store gateway. Lookups return (nil, nil)
// when nothing matches; connectivity faults surface as domain.ErrStoreUnavailable.
type AuthRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindRoleByName(ctx context.Context, name string) (*domain.Role, error)
	CreateUser(ctx context.Context, user NewUser) (CreateUserOutcome, error)
}
