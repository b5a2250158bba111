package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
	"github.com/pharmacontrol/identity-service/internal/core/ports"
)

// querier is the subset of pgxpool.Pool used by the repository.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AuthRepository reads users joined with their role and creates users through
// the sp_create_user function.
type AuthRepository struct {
	db querier
}

func NewAuthRepository(pool *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{db: pool}
}

const selectUser = `
	SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name,
	       u.role_id, r.name, u.created_at
	FROM users u
	JOIN roles r ON r.id = u.role_id
`

func (r *AuthRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := r.scanUser(r.db.QueryRow(ctx, selectUser+"WHERE u.email = $1", strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, wrap("find user by email", err)
	}
	return user, nil
}

func (r *AuthRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := r.scanUser(r.db.QueryRow(ctx, selectUser+"WHERE u.id = $1", id))
	if err != nil {
		return nil, wrap("find user by id", err)
	}
	return user, nil
}

func (r *AuthRepository) FindRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	err := r.db.QueryRow(ctx, `SELECT id, name FROM roles WHERE name = $1`, name).Scan(&role.ID, &role.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap("find role by name", err)
	}
	return &role, nil
}

// CreateUser makes a single call to sp_create_user, which inserts the row in
// its own transaction and reports (success, message) instead of raising.
func (r *AuthRepository) CreateUser(ctx context.Context, nu ports.NewUser) (ports.CreateUserOutcome, error) {
	var out ports.CreateUserOutcome
	err := r.db.QueryRow(ctx,
		`SELECT success, message FROM sp_create_user($1, $2, $3, $4, $5)`,
		nu.FirstName,
		nu.LastName,
		strings.ToLower(strings.TrimSpace(nu.Email)),
		nu.PasswordHash,
		nu.RoleID,
	).Scan(&out.Success, &out.Message)
	if err != nil {
		// A uniqueness violation that escaped the function still normalizes
		// to the same outcome.
		if isDuplicate(err, "") {
			return ports.CreateUserOutcome{Message: domain.MsgEmailRegistered, DuplicateEmail: true}, nil
		}
		return ports.CreateUserOutcome{}, wrap("create user", err)
	}
	if !out.Success && isDuplicate(nil, out.Message) {
		out.DuplicateEmail = true
		out.Message = domain.MsgEmailRegistered
	}
	return out, nil
}

func (r *AuthRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.RoleID,
		&u.RoleName,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Ping reports whether the store answers.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	if err := pool.Ping(ctx); err != nil {
		return wrap("ping", err)
	}
	return nil
}
