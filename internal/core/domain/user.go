package domain

import "time"

// Role names seeded by the schema migrations.
const (
	RoleAdmin      = "Administrador"
	RoleSupervisor = "Supervisor"
	RoleInspector  = "Inspector"
	RoleAnalyst    = "Analista"
	RoleDefault    = "USER"
)

// DefaultRoleID is used when the default role cannot be resolved by name.
const DefaultRoleID int64 = 1

// Role is a named permission group. A user references exactly one role.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User models an account as stored by the credential store, joined with its role name.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     *string   `json:"last_name,omitempty"`
	RoleID       int64     `json:"role_id"`
	RoleName     string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// PublicUser is the only user shape that leaves the service.
type PublicUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// Public strips the password hash. Roles is a list on the wire even though a
// user holds a single role.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	p := &PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		Roles:     []string{},
		CreatedAt: u.CreatedAt,
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.RoleName != "" {
		p.Roles = append(p.Roles, u.RoleName)
	}
	return p
}

// HasRole reports whether the user's single role matches name.
func (u *User) HasRole(name string) bool {
	return u != nil && u.RoleName != "" && u.RoleName == name
}
