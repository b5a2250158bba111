package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
	"github.com/pharmacontrol/identity-service/internal/core/ports"
)

// stubService answers from a fixed set of users and tokens.
type stubService struct {
	users  map[int64]*domain.User
	tokens map[string]int64
	down   bool
}

func newStubService() *stubService {
	last := "Pérez"
	return &stubService{
		users: map[int64]*domain.User{
			7: {ID: 7, Email: "ana@x.com", FirstName: "Ana", LastName: &last, RoleID: 3, RoleName: domain.RoleInspector},
		},
		tokens: map[string]int64{"good-token": 7},
	}
}

func (s *stubService) Login(context.Context, ports.LoginInput) ports.LoginResult {
	return ports.LoginResult{}
}

func (s *stubService) CreateUser(context.Context, ports.CreateUserInput) ports.CreateUserResult {
	return ports.CreateUserResult{}
}

func (s *stubService) ValidateToken(_ context.Context, token string) ports.TokenValidation {
	id, ok := s.tokens[token]
	if !ok {
		return ports.TokenValidation{}
	}
	u := s.users[id]
	return ports.TokenValidation{Valid: true, UserID: u.ID, Email: u.Email, Roles: []string{u.RoleName}}
}

func (s *stubService) GetUserInfo(_ context.Context, id int64) ports.UserInfoResult {
	if s.down {
		return ports.UserInfoResult{Message: domain.MsgUnavailable}
	}
	u, ok := s.users[id]
	if !ok {
		return ports.UserInfoResult{Message: domain.MsgUserNotFound}
	}
	return ports.UserInfoResult{Success: true, Message: domain.MsgUserFound, User: u.Public()}
}

func (s *stubService) HasRole(_ context.Context, id int64, role string) bool {
	return s.users[id].HasRole(role)
}

type stubPeeker map[string]time.Time

func (p stubPeeker) PeekExpiry(token string) (time.Time, bool) {
	exp, ok := p[token]
	return exp, ok
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

var errPingFailed = errors.New("connection refused")

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
