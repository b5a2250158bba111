package ports

import (
	"context"
	"time"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
)

// PasswordHasher hashes and verifies credentials with an adaptive algorithm.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, hash string) (bool, error)
}

// AccessVerifier is the subset of the codec needed by authorization checks.
type AccessVerifier interface {
	VerifyAccess(token string) (domain.TokenClaims, error)
}

// TokenCodec signs and verifies access and refresh tokens.
type TokenCodec interface {
	AccessVerifier
	IssueAccess(claims domain.TokenClaims) (string, time.Time, error)
	IssueRefresh(claims domain.TokenClaims) (string, time.Time, error)
	VerifyRefresh(token string) (domain.TokenClaims, error)
	// PeekExpiry decodes without verifying; introspection only.
	PeekExpiry(token string) (time.Time, bool)
}

// LoginFailureRecorder counts failed logins per account. It never blocks a login.
type LoginFailureRecorder interface {
	RecordFailure(ctx context.Context, email string) (int64, error)
	Reset(ctx context.Context, email string) error
	Failures(ctx context.Context, email string) (int64, error)
}
