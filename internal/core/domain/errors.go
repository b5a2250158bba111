package domain

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is the single verification failure of the token codec.
	ErrInvalidToken     = errors.New("invalid token")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrStoreUnavailable = errors.New("credential store unavailable")
	ErrHashing          = errors.New("password hashing failed")
	ErrInternal         = errors.New("internal error")
)

// Outcome messages returned in structured results.
const (
	MsgValidation         = "validation errors"
	MsgInvalidCredentials = "invalid credentials"
	MsgEmailRegistered    = "email already registered"
	MsgUnavailable        = "service unavailable"
	MsgInternal           = "internal error"
	MsgLoginOK            = "login successful"
	MsgUserCreated        = "user created"
	MsgUserNotFound       = "user not found"
	MsgTokenValid         = "token valid"
	MsgUserFound          = "user found"
	MsgCreateFailed       = "user could not be created"
)

// ValidationError carries every violated rule, never just the first.
type ValidationError struct {
	Causes []string
}

func (e *ValidationError) Error() string {
	return MsgValidation + ": " + strings.Join(e.Causes, "; ")
}

// NewValidationError returns nil when there are no causes.
func NewValidationError(causes []string) error {
	if len(causes) == 0 {
		return nil
	}
	return &ValidationError{Causes: causes}
}
