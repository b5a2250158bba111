package middleware

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
	"github.com/pharmacontrol/identity-service/internal/core/ports"
)

const authorizationHeader = "authorization"

var (
	ErrMissingToken       = errors.New("authorization token required")
	ErrMalformedHeader    = errors.New("invalid authorization header")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInsufficientRights = errors.New("insufficient permissions")
)

// AuthResult is the outcome of Authenticate. Claims is set only when Valid.
type AuthResult struct {
	Valid  bool
	UserID int64
	Role   string
	Claims domain.TokenClaims
	Error  error
}

// AuthzResult is the outcome of AuthorizeRoles.
type AuthzResult struct {
	Authorized bool
	Error      error
}

// Authorizer verifies bearer access tokens for services guarding privileged
// operations. It performs no I/O beyond token verification.
type Authorizer struct {
	verifier ports.AccessVerifier
}

func NewAuthorizer(verifier ports.AccessVerifier) *Authorizer {
	return &Authorizer{verifier: verifier}
}

// Authenticate reads "authorization: Bearer <token>" from incoming gRPC metadata.
func (a *Authorizer) Authenticate(ctx context.Context) AuthResult {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return AuthResult{Error: ErrMissingToken}
	}
	values := md.Get(authorizationHeader)
	if len(values) == 0 {
		return AuthResult{Error: ErrMissingToken}
	}
	return a.AuthenticateHeader(values[0])
}

// AuthenticateHeader verifies the value of an Authorization header.
func (a *Authorizer) AuthenticateHeader(header string) AuthResult {
	token, err := bearerToken(header)
	if err != nil {
		return AuthResult{Error: err}
	}
	claims, err := a.verifier.VerifyAccess(token)
	if err != nil {
		return AuthResult{Error: ErrInvalidToken}
	}
	return AuthResult{Valid: true, UserID: claims.UserID, Role: claims.Role, Claims: claims}
}

// AuthorizeRoles authenticates the call and checks the token role against roles.
func (a *Authorizer) AuthorizeRoles(ctx context.Context, roles ...string) AuthzResult {
	res := a.Authenticate(ctx)
	if !res.Valid {
		return AuthzResult{Error: res.Error}
	}
	if !roleAllowed(res.Role, roles) {
		return AuthzResult{Error: ErrInsufficientRights}
	}
	return AuthzResult{Authorized: true}
}

type claimsKey struct{}

// ClaimsFromContext returns the claims stored by UnaryServerInterceptor.
func ClaimsFromContext(ctx context.Context) (domain.TokenClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(domain.TokenClaims)
	return c, ok
}

// UnaryServerInterceptor guards the methods listed in policy, keyed by full
// method name. An empty role list only requires a valid token. Methods
// absent from policy pass through untouched. The identity service's own RPCs
// are public; this is for services that consume its tokens, installed
// through rpc.GRPCOptions.Interceptors or grpc.ChainUnaryInterceptor.
func (a *Authorizer) UnaryServerInterceptor(policy map[string][]string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		roles, guarded := policy[info.FullMethod]
		if !guarded {
			return handler(ctx, req)
		}
		res := a.Authenticate(ctx)
		if !res.Valid {
			return nil, status.Error(codes.Unauthenticated, res.Error.Error())
		}
		if len(roles) > 0 && !roleAllowed(res.Role, roles) {
			return nil, status.Error(codes.PermissionDenied, ErrInsufficientRights.Error())
		}
		return handler(context.WithValue(ctx, claimsKey{}, res.Claims), req)
	}
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMalformedHeader
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
