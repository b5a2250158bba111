package ports

import (
	"context"
	"time"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
)

type LoginInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	Success      bool
	Message      string
	Causes       []string
	AccessToken  string
	RefreshToken string
	User         *domain.PublicUser
}

type CreateUserInput struct {
	FirstName string
	LastName  *string
	Email     string
	Password  string
	RoleID    *int64
}

type CreateUserResult struct {
	Success bool
	Message string
	Causes  []string
	User    *domain.PublicUser
}

// TokenValidation is deliberately low-information when Valid is false.
type TokenValidation struct {
	Valid     bool
	UserID    int64
	Email     string
	Roles     []string
	ExpiresAt time.Time
}

type UserInfoResult struct {
	Success bool
	Message string
	User    *domain.PublicUser
}

// AuthService is the identity orchestrator. None of its methods return an
// error: every failure is folded into the result.
type AuthService interface {
	Login(ctx context.Context, in LoginInput) LoginResult
	CreateUser(ctx context.Context, in CreateUserInput) CreateUserResult
	ValidateToken(ctx context.Context, token string) TokenValidation
	GetUserInfo(ctx context.Context, userID int64) UserInfoResult
	HasRole(ctx context.Context, userID int64, roleName string) bool
}
