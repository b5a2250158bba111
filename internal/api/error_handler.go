package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pharmacontrol/identity-service/internal/api/middleware"
	"github.com/pharmacontrol/identity-service/internal/core/domain"
)

// errorResponse is the canonical error envelope for all HTTP errors.
type errorResponse struct {
	Error  string   `json:"error"`
	Causes []string `json:"causes,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that maps known
// errors to status codes and renders {"error": "<message>"}. Unknown errors
// are logged and reported as a generic 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, errorResponse{Error: domain.MsgValidation, Causes: ve.Causes}
	}

	// Echo's own errors (bind failures, router 404, RBAC 403).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	switch {
	case errors.Is(err, middleware.ErrMissingToken),
		errors.Is(err, middleware.ErrMalformedHeader),
		errors.Is(err, middleware.ErrInvalidToken),
		errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, errorResponse{Error: "invalid token"}
	case errors.Is(err, middleware.ErrInsufficientRights):
		return http.StatusForbidden, errorResponse{Error: "insufficient permissions"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: domain.MsgInvalidCredentials}
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusConflict, errorResponse{Error: domain.MsgEmailRegistered}
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: domain.MsgUnavailable}
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}
