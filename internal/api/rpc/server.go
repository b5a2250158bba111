// Package rpc binds the identity use cases to the auth.AuthService gRPC
// service. Domain outcomes always complete with codes.OK; the success or
// valid flag in the body carries the verdict.
package rpc

import (
	"context"
	"time"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
	"github.com/pharmacontrol/identity-service/internal/core/ports"
)

// Server implements AuthServiceServer on top of ports.AuthService.
type Server struct {
	svc ports.AuthService
}

func NewServer(svc ports.AuthService) *Server {
	return &Server{svc: svc}
}

func (s *Server) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if req == nil {
		req = &LoginRequest{}
	}
	res := s.svc.Login(ctx, ports.LoginInput{Email: req.Email, Password: req.Password})
	return &LoginResponse{
		Success:      res.Success,
		Message:      res.Message,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         toUser(res.User),
		Errors:       res.Causes,
	}, nil
}

func (s *Server) ValidateToken(ctx context.Context, req *ValidateTokenRequest) (*ValidateTokenResponse, error) {
	if req == nil {
		req = &ValidateTokenRequest{}
	}
	res := s.svc.ValidateToken(ctx, req.Token)
	if !res.Valid {
		return &ValidateTokenResponse{}, nil
	}
	out := &ValidateTokenResponse{
		Valid:  true,
		UserID: res.UserID,
		Email:  res.Email,
		Roles:  res.Roles,
	}
	if !res.ExpiresAt.IsZero() {
		out.ExpiresAt = res.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return out, nil
}

func (s *Server) CreateUser(ctx context.Context, req *CreateUserRequest) (*CreateUserResponse, error) {
	if req == nil {
		req = &CreateUserRequest{}
	}
	in := ports.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.RoleID != nil {
		id := int64(*req.RoleID)
		in.RoleID = &id
	}
	res := s.svc.CreateUser(ctx, in)
	return &CreateUserResponse{
		Success: res.Success,
		Message: res.Message,
		User:    toUser(res.User),
		Errors:  res.Causes,
	}, nil
}

func toUser(u *domain.PublicUser) *User {
	if u == nil {
		return nil
	}
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return &User{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     roles,
	}
}
