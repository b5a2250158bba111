package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
	"github.com/pharmacontrol/identity-service/internal/core/ports"
	"github.com/pharmacontrol/identity-service/internal/pkg/metrics"
	"github.com/pharmacontrol/identity-service/pkg/logger"
)

// dummyPassword feeds the verify that runs for unknown emails.
const dummyPassword = "timing-parity-placeholder"

// IdentityOptions carries the tunables of the orchestrator.
type IdentityOptions struct {
	DefaultRole      string
	MaxLoginAttempts int
}

type identityService struct {
	repo     ports.AuthRepository
	hasher   ports.PasswordHasher
	codec    ports.TokenCodec
	failures ports.LoginFailureRecorder
	validate *Validator
	opts     IdentityOptions
	log      zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewIdentityService returns an AuthService implementation. failures may be nil.
func NewIdentityService(
	repo ports.AuthRepository,
	hasher ports.PasswordHasher,
	codec ports.TokenCodec,
	failures ports.LoginFailureRecorder,
	opts IdentityOptions,
	log zerolog.Logger,
) ports.AuthService {
	if opts.DefaultRole == "" {
		opts.DefaultRole = domain.RoleDefault
	}
	if failures == nil {
		failures = noopFailures{}
	}
	return &identityService{
		repo:     repo,
		hasher:   hasher,
		codec:    codec,
		failures: failures,
		validate: NewValidator(),
		opts:     opts,
		log:      log,
	}
}

func (s *identityService) Login(ctx context.Context, in ports.LoginInput) ports.LoginResult {
	in.Email = normalizeEmail(in.Email)
	log := s.reqLog(ctx).With().Str("use_case", "login").Str("email", logger.MaskEmail(in.Email)).Logger()

	if causes := s.validate.LoginRules(in); len(causes) > 0 {
		metrics.LoginAttemptsTotal.WithLabelValues("validation").Inc()
		return ports.LoginResult{Message: domain.MsgValidation, Causes: causes}
	}

	user, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		msg, label := s.fault(log, err, "user lookup failed")
		metrics.LoginAttemptsTotal.WithLabelValues(label).Inc()
		return ports.LoginResult{Message: msg}
	}

	if user == nil {
		// Burn the same bcrypt cost as a real mismatch.
		s.verifyDummy(ctx, in.Password)
		s.recordFailure(ctx, log, in.Email)
		return ports.LoginResult{Message: domain.MsgInvalidCredentials}
	}

	ok, err := s.hasher.Verify(ctx, in.Password, user.PasswordHash)
	if err != nil {
		msg, label := s.fault(log, err, "password verification failed")
		metrics.LoginAttemptsTotal.WithLabelValues(label).Inc()
		return ports.LoginResult{Message: msg}
	}
	if !ok {
		s.recordFailure(ctx, log, in.Email)
		return ports.LoginResult{Message: domain.MsgInvalidCredentials}
	}

	claims := domain.TokenClaims{UserID: user.ID, Email: user.Email, Role: user.RoleName}
	access, _, err := s.codec.IssueAccess(claims)
	if err != nil {
		msg, label := s.fault(log, err, "issue access token failed")
		metrics.LoginAttemptsTotal.WithLabelValues(label).Inc()
		return ports.LoginResult{Message: msg}
	}
	refresh, _, err := s.codec.IssueRefresh(claims)
	if err != nil {
		msg, label := s.fault(log, err, "issue refresh token failed")
		metrics.LoginAttemptsTotal.WithLabelValues(label).Inc()
		return ports.LoginResult{Message: msg}
	}

	if err := s.failures.Reset(ctx, in.Email); err != nil {
		log.Warn().Err(err).Msg("reset login failures")
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	log.Info().Int64("user_id", user.ID).Msg("login successful")

	return ports.LoginResult{
		Success:      true,
		Message:      domain.MsgLoginOK,
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.Public(),
	}
}

func (s *identityService) CreateUser(ctx context.Context, in ports.CreateUserInput) ports.CreateUserResult {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	log := s.reqLog(ctx).With().Str("use_case", "create_user").Str("email", logger.MaskEmail(in.Email)).Logger()

	causes := s.validate.CreateUserRules(in)
	if in.Password != "" {
		causes = append(causes, PasswordStrength(in.Password)...)
	}
	if len(causes) > 0 {
		metrics.UserRegistrationsTotal.WithLabelValues("validation").Inc()
		return ports.CreateUserResult{Message: domain.MsgValidation, Causes: causes}
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		msg, label := s.fault(log, err, "hash password failed")
		metrics.UserRegistrationsTotal.WithLabelValues(label).Inc()
		return ports.CreateUserResult{Message: msg}
	}

	roleID := s.resolveRole(ctx, log, in.RoleID)

	// No existence pre-check: the unique constraint on email is the only
	// serialization point between concurrent registrations.
	outcome, err := s.repo.CreateUser(ctx, ports.NewUser{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		RoleID:       roleID,
	})
	if err != nil {
		msg, label := s.fault(log, err, "create user failed")
		metrics.UserRegistrationsTotal.WithLabelValues(label).Inc()
		return ports.CreateUserResult{Message: msg}
	}
	if !outcome.Success {
		if outcome.DuplicateEmail {
			metrics.UserRegistrationsTotal.WithLabelValues("duplicate").Inc()
			log.Info().Msg("registration rejected: email already registered")
			return ports.CreateUserResult{Message: domain.MsgEmailRegistered}
		}
		metrics.UserRegistrationsTotal.WithLabelValues("rejected").Inc()
		log.Warn().Str("store_message", outcome.Message).Int64("role_id", roleID).Msg("registration rejected by store")
		msg := outcome.Message
		if msg == "" {
			msg = domain.MsgCreateFailed
		}
		return ports.CreateUserResult{Message: msg}
	}

	created, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		msg, label := s.fault(log, err, "re-fetch created user failed")
		metrics.UserRegistrationsTotal.WithLabelValues(label).Inc()
		return ports.CreateUserResult{Message: msg}
	}
	if created == nil {
		log.Error().Msg("created user not found on re-fetch")
		metrics.UserRegistrationsTotal.WithLabelValues("error").Inc()
		return ports.CreateUserResult{Message: domain.MsgInternal}
	}

	metrics.UserRegistrationsTotal.WithLabelValues("created").Inc()
	log.Info().Int64("user_id", created.ID).Str("role", created.RoleName).Msg("user created")
	return ports.CreateUserResult{Success: true, Message: domain.MsgUserCreated, User: created.Public()}
}

func (s *identityService) ValidateToken(ctx context.Context, token string) ports.TokenValidation {
	claims, err := s.codec.VerifyAccess(token)
	if err != nil {
		metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
		return ports.TokenValidation{}
	}

	// A token can outlive the account it was issued for.
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		log := s.reqLog(ctx)
		log.Error().Err(err).Str("use_case", "validate_token").Int64("user_id", claims.UserID).Msg("user lookup failed")
		metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
		return ports.TokenValidation{}
	}
	if user == nil {
		metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
		return ports.TokenValidation{}
	}

	metrics.TokenValidationsTotal.WithLabelValues("valid").Inc()
	return ports.TokenValidation{
		Valid:     true,
		UserID:    user.ID,
		Email:     user.Email,
		Roles:     user.Public().Roles,
		ExpiresAt: claims.ExpiresAt,
	}
}

func (s *identityService) GetUserInfo(ctx context.Context, userID int64) ports.UserInfoResult {
	if userID <= 0 {
		return ports.UserInfoResult{Message: domain.MsgUserNotFound}
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		msg, _ := s.fault(s.reqLog(ctx).With().Str("use_case", "get_user_info").Logger(), err, "user lookup failed")
		return ports.UserInfoResult{Message: msg}
	}
	if user == nil {
		return ports.UserInfoResult{Message: domain.MsgUserNotFound}
	}
	return ports.UserInfoResult{Success: true, Message: domain.MsgUserFound, User: user.Public()}
}

func (s *identityService) HasRole(ctx context.Context, userID int64, roleName string) bool {
	if userID <= 0 || roleName == "" {
		return false
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		log := s.reqLog(ctx)
		log.Error().Err(err).Str("use_case", "has_role").Int64("user_id", userID).Msg("user lookup failed")
		return false
	}
	return user.HasRole(roleName)
}

// reqLog prefers the request-scoped logger carried by ctx, which holds the
// request id, over the service logger.
func (s *identityService) reqLog(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return s.log
}

// fault logs err with detail and returns the message and metric label shown
// to callers.
func (s *identityService) fault(log zerolog.Logger, err error, what string) (string, string) {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		log.Error().Err(err).Msg(what + ": store unavailable")
		return domain.MsgUnavailable, "unavailable"
	}
	log.Error().Err(err).Msg(what)
	return domain.MsgInternal, "error"
}

// resolveRole returns the requested role or the default one. The default is
// looked up by name and falls back to domain.DefaultRoleID.
func (s *identityService) resolveRole(ctx context.Context, log zerolog.Logger, requested *int64) int64 {
	if requested != nil {
		return *requested
	}
	role, err := s.repo.FindRoleByName(ctx, s.opts.DefaultRole)
	if err != nil {
		log.Warn().Err(err).Str("role", s.opts.DefaultRole).Msg("default role lookup failed, using fallback id")
		return domain.DefaultRoleID
	}
	if role == nil {
		log.Warn().Str("role", s.opts.DefaultRole).Msg("default role missing, using fallback id")
		return domain.DefaultRoleID
	}
	return role.ID
}

func (s *identityService) verifyDummy(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(ctx, dummyPassword)
		if err != nil {
			s.log.Warn().Err(err).Msg("dummy hash unavailable, timing parity degraded")
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(ctx, password, s.dummyHash)
}

func (s *identityService) recordFailure(ctx context.Context, log zerolog.Logger, email string) {
	metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()

	n, err := s.failures.RecordFailure(ctx, email)
	if err != nil {
		log.Warn().Err(err).Msg("record login failure")
		return
	}
	if s.opts.MaxLoginAttempts > 0 && n >= int64(s.opts.MaxLoginAttempts) {
		log.Warn().Int64("failures", n).Int("threshold", s.opts.MaxLoginAttempts).Msg("repeated login failures")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type noopFailures struct{}

func (noopFailures) RecordFailure(context.Context, string) (int64, error) { return 0, nil }
func (noopFailures) Reset(context.Context, string) error                  { return nil }
func (noopFailures) Failures(context.Context, string) (int64, error)      { return 0, nil }
