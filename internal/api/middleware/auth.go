package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxClaims = "claims"
)

// Auth validates the bearer access token and injects its claims into the
// echo context.
func Auth(a *Authorizer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := a.AuthenticateHeader(c.Request().Header.Get("Authorization"))
			if !res.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, res.Error.Error())
			}

			c.Set(ctxUserID, res.UserID)
			c.Set(ctxRole, res.Role)
			c.Set(ctxClaims, res.Claims)

			return next(c)
		}
	}
}

// Claims returns the claims injected by Auth.
func Claims(c echo.Context) (domain.TokenClaims, bool) {
	claims, ok := c.Get(ctxClaims).(domain.TokenClaims)
	return claims, ok
}
