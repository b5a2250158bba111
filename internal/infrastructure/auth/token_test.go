package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Issuer:        "identity-service",
		Audience:      "pharmacontrol",
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

func newTestCodec(t *testing.T) *JWTCodec {
	t.Helper()
	c, err := NewJWTCodec(testTokenConfig())
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	return c
}

var testClaims = domain.TokenClaims{UserID: 7, Email: "ana@x.com", Role: domain.RoleDefault}

func TestNewJWTCodec_RejectsBadSecrets(t *testing.T) {
	cfg := testTokenConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	if _, err := NewJWTCodec(cfg); err == nil {
		t.Fatalf("expected error for equal secrets")
	}

	cfg = testTokenConfig()
	cfg.AccessSecret = ""
	if _, err := NewJWTCodec(cfg); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestJWTCodec_AccessRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	token, exp, err := c.IssueAccess(testClaims)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	got, err := c.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if got.UserID != 7 || got.Email != "ana@x.com" || got.Role != domain.RoleDefault {
		t.Fatalf("unexpected claims: %+v", got)
	}
	if got.Kind != domain.TokenAccess {
		t.Fatalf("unexpected kind: %s", got.Kind)
	}
	if !got.ExpiresAt.Equal(exp) {
		t.Fatalf("expiry mismatch: %v vs %v", got.ExpiresAt, exp)
	}
}

func TestJWTCodec_KindsDoNotCrossVerify(t *testing.T) {
	c := newTestCodec(t)

	access, _, err := c.IssueAccess(testClaims)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refresh, _, err := c.IssueRefresh(testClaims)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	if _, err := c.VerifyRefresh(access); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("access token verified as refresh: %v", err)
	}
	if _, err := c.VerifyAccess(refresh); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("refresh token verified as access: %v", err)
	}
	if _, err := c.VerifyRefresh(refresh); err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
}

func TestJWTCodec_TokenUseChecked(t *testing.T) {
	cfg := testTokenConfig()
	c := newTestCodec(t)

	// signed with the access secret but labelled as refresh
	now := time.Now()
	claims := Claims{
		UserID:   7,
		TokenUse: string(domain.TokenRefresh),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.AccessSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.VerifyAccess(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTCodec_Expired(t *testing.T) {
	c := newTestCodec(t)
	c.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, exp, err := c.IssueAccess(testClaims)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	c.now = time.Now

	if _, err := c.VerifyAccess(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
	peeked, ok := c.PeekExpiry(token)
	if !ok {
		t.Fatalf("expected PeekExpiry to decode expired token")
	}
	if !peeked.Equal(exp) {
		t.Fatalf("peeked expiry %v, want %v", peeked, exp)
	}
}

func TestJWTCodec_WrongIssuerOrAudience(t *testing.T) {
	c := newTestCodec(t)
	token, _, err := c.IssueAccess(testClaims)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	cfg := testTokenConfig()
	cfg.Audience = "someone-else"
	other, err := NewJWTCodec(cfg)
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	if _, err := other.VerifyAccess(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected audience mismatch to fail, got %v", err)
	}

	cfg = testTokenConfig()
	cfg.Issuer = "someone-else"
	other, err = NewJWTCodec(cfg)
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	if _, err := other.VerifyAccess(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch to fail, got %v", err)
	}
}

func TestJWTCodec_Tampered(t *testing.T) {
	c := newTestCodec(t)
	token, _, err := c.IssueAccess(testClaims)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if tampered == token {
		tampered = token[:len(token)-2] + "yy"
	}

	for _, tc := range []string{"", "garbage", "a.b.c", tampered} {
		if _, err := c.VerifyAccess(tc); !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", tc, err)
		}
	}
	if _, ok := c.PeekExpiry("garbage"); ok {
		t.Fatalf("expected PeekExpiry to fail on garbage")
	}
}

func TestJWTCodec_AlgNoneRejected(t *testing.T) {
	c := newTestCodec(t)
	cfg := testTokenConfig()
	now := time.Now()
	claims := Claims{
		UserID:   7,
		TokenUse: string(domain.TokenAccess),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.VerifyAccess(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected alg none to be rejected, got %v", err)
	}
}
