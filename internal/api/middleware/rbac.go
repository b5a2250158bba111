package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RBAC admits requests whose authenticated role is one of roles. It reads
// what Auth stored, so a request that skipped Auth answers 401 rather than 403.
func RBAC(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ctxRole).(string)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, ErrMissingToken.Error())
			}
			if !roleAllowed(role, roles) {
				return echo.NewHTTPError(http.StatusForbidden, ErrInsufficientRights.Error())
			}
			return next(c)
		}
	}
}
