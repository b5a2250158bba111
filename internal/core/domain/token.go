package domain

import "time"

// TokenKind distinguishes the two signed credentials issued per session.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// TokenClaims are the identity facts embedded in a signed token.
type TokenClaims struct {
	UserID    int64
	Email     string
	Role      string
	Kind      TokenKind
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Roles returns the claimed role as a list, matching the wire format.
func (c TokenClaims) Roles() []string {
	if c.Role == "" {
		return []string{}
	}
	return []string{c.Role}
}
