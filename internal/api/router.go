package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pharmacontrol/identity-service/internal/api/handler"
	"github.com/pharmacontrol/identity-service/internal/api/middleware"
	"github.com/pharmacontrol/identity-service/internal/core/domain"
	"github.com/pharmacontrol/identity-service/internal/core/ports"
)

// RouterDeps are the collaborators served over the operational HTTP port.
type RouterDeps struct {
	Service  ports.AuthService
	Verifier ports.AccessVerifier
	Peeker   handler.ExpiryPeeker
	Postgres handler.Pinger
	Redis    *redis.Client // nil when failure tracking is disabled
}

// NewRouter builds the Echo instance for probes, metrics and the
// administrator routes.
func NewRouter(deps RouterDeps, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("identity_http"))

	// --- Probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Postgres, deps.Redis)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Administrator routes ---
	adminHandler := handler.NewAdminHandler(deps.Service, deps.Peeker)
	admin := e.Group("/admin",
		middleware.Auth(middleware.NewAuthorizer(deps.Verifier)),
		middleware.RBAC(domain.RoleAdmin),
	)
	admin.POST("/tokens/introspect", adminHandler.IntrospectToken)
	admin.GET("/users/:id", adminHandler.GetUser)
	admin.GET("/users/:id/roles/:role", adminHandler.HasRole)

	return e
}
