package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
)

// TokenConfig holds the signing material and lifetimes of issued tokens.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims is the JWT payload. token_use binds the token to its kind, so an
// access token never verifies as a refresh token even with a shared secret.
type Claims struct {
	UserID   int64  `json:"userId"`
	Email    string `json:"email"`
	Roles    string `json:"roles"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// JWTCodec implements ports.TokenCodec with HS256.
type JWTCodec struct {
	cfg TokenConfig
	now func() time.Time
}

func NewJWTCodec(cfg TokenConfig) (*JWTCodec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token secrets must be set")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &JWTCodec{cfg: cfg, now: time.Now}, nil
}

func (c *JWTCodec) IssueAccess(claims domain.TokenClaims) (string, time.Time, error) {
	return c.issue(claims, domain.TokenAccess, c.cfg.AccessSecret, c.cfg.AccessTTL)
}

func (c *JWTCodec) IssueRefresh(claims domain.TokenClaims) (string, time.Time, error) {
	return c.issue(claims, domain.TokenRefresh, c.cfg.RefreshSecret, c.cfg.RefreshTTL)
}

func (c *JWTCodec) VerifyAccess(token string) (domain.TokenClaims, error) {
	return c.verify(token, domain.TokenAccess, c.cfg.AccessSecret)
}

func (c *JWTCodec) VerifyRefresh(token string) (domain.TokenClaims, error) {
	return c.verify(token, domain.TokenRefresh, c.cfg.RefreshSecret)
}

// PeekExpiry reads exp without checking the signature. Never use the result
// for an authorization decision.
func (c *JWTCodec) PeekExpiry(token string) (time.Time, bool) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (c *JWTCodec) issue(in domain.TokenClaims, kind domain.TokenKind, secret string, ttl time.Duration) (string, time.Time, error) {
	now := c.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)

	claims := Claims{
		UserID:   in.UserID,
		Email:    in.Email,
		Roles:    in.Role,
		TokenUse: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", in.UserID),
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

func (c *JWTCodec) verify(token string, kind domain.TokenKind, secret string) (domain.TokenClaims, error) {
	if token == "" {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}
	if claims.TokenUse != string(kind) || claims.UserID <= 0 {
		return domain.TokenClaims{}, domain.ErrInvalidToken
	}

	out := domain.TokenClaims{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Role:     claims.Roles,
		Kind:     kind,
		Issuer:   claims.Issuer,
		Audience: []string(claims.Audience),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
