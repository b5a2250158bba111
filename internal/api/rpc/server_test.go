package rpc

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/pharmacontrol/identity-service/internal/api/middleware"
	"github.com/pharmacontrol/identity-service/internal/core/domain"
	"github.com/pharmacontrol/identity-service/internal/core/ports"
	"github.com/pharmacontrol/identity-service/internal/core/service"
	"github.com/pharmacontrol/identity-service/internal/infrastructure/auth"
)

// memRepo is a minimal in-memory credential store.
type memRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	next  int64
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]*domain.User)}
}

func (r *memRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[email]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memRepo) FindRoleByName(_ context.Context, name string) (*domain.Role, error) {
	if name != domain.RoleDefault {
		return nil, nil
	}
	return &domain.Role{ID: domain.DefaultRoleID, Name: name}, nil
}

func (r *memRepo) CreateUser(_ context.Context, nu ports.NewUser) (ports.CreateUserOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[nu.Email]; ok {
		return ports.CreateUserOutcome{Message: domain.MsgEmailRegistered, DuplicateEmail: true}, nil
	}
	r.next++
	r.users[nu.Email] = &domain.User{
		ID: r.next, Email: nu.Email, PasswordHash: nu.PasswordHash, FirstName: nu.FirstName,
		LastName: nu.LastName, RoleID: nu.RoleID, RoleName: domain.RoleDefault, CreatedAt: time.Now(),
	}
	return ports.CreateUserOutcome{Success: true, Message: domain.MsgUserCreated}, nil
}

// panickingService blows up on every call.
type panickingService struct{ ports.AuthService }

func (panickingService) Login(context.Context, ports.LoginInput) ports.LoginResult {
	panic("boom")
}

func newIdentityService(t *testing.T) ports.AuthService {
	t.Helper()
	codec, err := auth.NewJWTCodec(auth.TokenConfig{
		AccessSecret: "access", RefreshSecret: "refresh",
		Issuer: "pharmacy-control-system", Audience: "pharmacy-users",
	})
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	return service.NewIdentityService(newMemRepo(), auth.NewBcryptHasher(bcrypt.MinCost, nil), codec, nil,
		service.IdentityOptions{}, zerolog.Nop())
}

func dial(t *testing.T, svc ports.AuthService) *grpc.ClientConn {
	t.Helper()
	return dialWith(t, svc, GRPCOptions{MaxMessageBytes: 1 << 20})
}

func dialWith(t *testing.T, svc ports.AuthService, opts GRPCOptions) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := NewGRPCServer(svc, health.NewServer(), opts, zerolog.Nop())
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestAuthService_RegisterLoginValidate(t *testing.T) {
	client := NewAuthServiceClient(dial(t, newIdentityService(t)))
	ctx := context.Background()
	last := "B"

	created, err := client.CreateUser(ctx, &CreateUserRequest{
		Email: "a@test.com", Password: "Str0ng!Pass", FirstName: "A", LastName: &last,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !created.Success || created.User == nil {
		t.Fatalf("expected success, got %+v", created)
	}
	if len(created.User.Roles) != 1 || created.User.Roles[0] != domain.RoleDefault {
		t.Fatalf("expected default role, got %v", created.User.Roles)
	}

	login, err := client.Login(ctx, &LoginRequest{Email: "a@test.com", Password: "Str0ng!Pass"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !login.Success || login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatalf("expected tokens, got %+v", login)
	}

	v, err := client.ValidateToken(ctx, &ValidateTokenRequest{Token: login.AccessToken})
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if !v.Valid || v.Email != "a@test.com" || v.UserID != created.User.ID {
		t.Fatalf("expected valid token, got %+v", v)
	}
	if _, err := time.Parse(time.RFC3339, v.ExpiresAt); err != nil {
		t.Fatalf("expected RFC3339 expires_at, got %q", v.ExpiresAt)
	}
}

func TestAuthService_DomainFailuresAreOK(t *testing.T) {
	client := NewAuthServiceClient(dial(t, newIdentityService(t)))
	ctx := context.Background()

	login, err := client.Login(ctx, &LoginRequest{Email: "ghost@test.com", Password: "x"})
	if err != nil {
		t.Fatalf("expected transport success, got %v", err)
	}
	if login.Success || login.Message != domain.MsgInvalidCredentials || login.User != nil {
		t.Fatalf("unexpected login response %+v", login)
	}

	created, err := client.CreateUser(ctx, &CreateUserRequest{Email: "bad", Password: "abc"})
	if err != nil {
		t.Fatalf("expected transport success, got %v", err)
	}
	if created.Success || created.Message != domain.MsgValidation || len(created.Errors) == 0 {
		t.Fatalf("unexpected create response %+v", created)
	}

	v, err := client.ValidateToken(ctx, &ValidateTokenRequest{Token: "garbage"})
	if err != nil {
		t.Fatalf("expected transport success, got %v", err)
	}
	if v.Valid || v.UserID != 0 || v.Email != "" || len(v.Roles) != 0 || v.ExpiresAt != "" {
		t.Fatalf("invalid token must carry no detail, got %+v", v)
	}
}

// rawCodec sends bytes untouched under the json content-subtype.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error)      { return v.([]byte), nil }
func (rawCodec) Unmarshal(data []byte, v any) error { *(v.(*[]byte)) = data; return nil }
func (rawCodec) Name() string                       { return CodecName }

func TestAuthService_MalformedMessage(t *testing.T) {
	conn := dial(t, newIdentityService(t))

	var out []byte
	err := conn.Invoke(context.Background(), LoginFullMethod, []byte(`{"email": 42`), &out,
		grpc.ForceCodec(rawCodec{}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	err = conn.Invoke(context.Background(), CreateUserFullMethod, []byte(`{"role_id": "admin"}`), &out,
		grpc.ForceCodec(rawCodec{}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for non-numeric role_id, got %v", err)
	}
}

func TestAuthService_RoleIDAsString(t *testing.T) {
	conn := dial(t, newIdentityService(t))

	var out []byte
	body := []byte(`{"email":"r@test.com","password":"Str0ng!Pass","first_name":"R","role_id":"1"}`)
	if err := conn.Invoke(context.Background(), CreateUserFullMethod, body, &out, grpc.ForceCodec(rawCodec{})); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	var resp CreateUserResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
}

func TestAuthService_PanicIsInternal(t *testing.T) {
	client := NewAuthServiceClient(dial(t, panickingService{}))

	_, err := client.Login(context.Background(), &LoginRequest{Email: "a@test.com", Password: "x"})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestAuthService_RequestIDEchoed(t *testing.T) {
	client := NewAuthServiceClient(dial(t, newIdentityService(t)))
	ctx := metadata.AppendToOutgoingContext(context.Background(), requestIDHeader, "req-123")

	var header metadata.MD
	if _, err := client.Login(ctx, &LoginRequest{}, grpc.Header(&header)); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := header.Get(requestIDHeader); len(got) != 1 || got[0] != "req-123" {
		t.Fatalf("expected echoed request id, got %v", got)
	}
}

func TestAuthService_Health(t *testing.T) {
	conn := dial(t, newIdentityService(t))

	res, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", res.GetStatus())
	}
}

func TestRoleID_UnmarshalJSON(t *testing.T) {
	var req CreateUserRequest
	if err := json.Unmarshal([]byte(`{"role_id": 3}`), &req); err != nil || req.RoleID == nil || *req.RoleID != 3 {
		t.Fatalf("number: %v %v", req.RoleID, err)
	}
	req = CreateUserRequest{}
	if err := json.Unmarshal([]byte(`{"role_id": "4"}`), &req); err != nil || *req.RoleID != 4 {
		t.Fatalf("string: %v %v", req.RoleID, err)
	}
	req = CreateUserRequest{}
	if err := json.Unmarshal([]byte(`{"role_id": null}`), &req); err != nil || req.RoleID != nil {
		t.Fatalf("null: %v %v", req.RoleID, err)
	}
	if err := json.Unmarshal([]byte(`{"role_id": 1.5}`), &req); err == nil {
		t.Fatalf("expected error for fractional role_id")
	}
}

// roleVerifier accepts tokens named after a role.
type roleVerifier struct{}

func (roleVerifier) VerifyAccess(token string) (domain.TokenClaims, error) {
	switch token {
	case "admin":
		return domain.TokenClaims{UserID: 1, Role: domain.RoleAdmin}, nil
	case "inspector":
		return domain.TokenClaims{UserID: 2, Role: domain.RoleInspector}, nil
	}
	return domain.TokenClaims{}, domain.ErrInvalidToken
}

func TestGRPCServer_ExtraInterceptorsGuardMethods(t *testing.T) {
	guard := middleware.NewAuthorizer(roleVerifier{}).UnaryServerInterceptor(map[string][]string{
		CreateUserFullMethod: {domain.RoleAdmin},
	})
	client := NewAuthServiceClient(dialWith(t, newIdentityService(t), GRPCOptions{
		Interceptors: []grpc.UnaryServerInterceptor{guard},
	}))

	req := &CreateUserRequest{Email: "guarded@test.com", Password: "Str0ng!Pass", FirstName: "G"}
	withToken := func(token string) context.Context {
		return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
	}

	if _, err := client.CreateUser(context.Background(), req); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated without a token, got %v", err)
	}
	if _, err := client.CreateUser(withToken("inspector"), req); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied for inspector, got %v", err)
	}
	resp, err := client.CreateUser(withToken("admin"), req)
	if err != nil || !resp.Success {
		t.Fatalf("expected admin to create the user, resp=%+v err=%v", resp, err)
	}

	// unguarded methods pass through
	if _, err := client.Login(context.Background(), &LoginRequest{Email: "guarded@test.com", Password: "Str0ng!Pass"}); err != nil {
		t.Fatalf("login should not be guarded: %v", err)
	}
}
