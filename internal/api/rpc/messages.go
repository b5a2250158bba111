package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID        int64    `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
}

type LoginResponse struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	AccessToken  string   `json:"access_token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	User         *User    `json:"user,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse carries nothing but valid=false on failure.
type ValidateTokenResponse struct {
	Valid     bool     `json:"valid"`
	UserID    int64    `json:"user_id,omitempty"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	ExpiresAt string   `json:"expires_at,omitempty"`
}

type CreateUserRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"first_name"`
	LastName  *string `json:"last_name,omitempty"`
	RoleID    *RoleID `json:"role_id,omitempty"`
}

type CreateUserResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	User    *User    `json:"user,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// RoleID accepts a JSON number or a numeric string, since gateways often
// forward form values verbatim. Anything else is a malformed message.
type RoleID int64

func (r *RoleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("role_id must be an integer: %q", data)
	}
	*r = RoleID(n)
	return nil
}
