package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
	"github.com/pharmacontrol/identity-service/internal/core/ports"
)

// ExpiryPeeker decodes a token's expiry without verifying it.
type ExpiryPeeker interface {
	PeekExpiry(token string) (time.Time, bool)
}

// AdminHandler serves the administrator-only introspection routes.
type AdminHandler struct {
	svc    ports.AuthService
	peeker ExpiryPeeker
}

func NewAdminHandler(svc ports.AuthService, peeker ExpiryPeeker) *AdminHandler {
	return &AdminHandler{svc: svc, peeker: peeker}
}

type introspectRequest struct {
	Token string `json:"token" validate:"required"`
}

type introspectResponse struct {
	Active    bool     `json:"active"`
	Expired   bool     `json:"expired"`
	ExpiresAt string   `json:"expires_at,omitempty"`
	UserID    int64    `json:"user_id,omitempty"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

type roleCheckResponse struct {
	UserID  int64  `json:"user_id"`
	Role    string `json:"role"`
	HasRole bool   `json:"has_role"`
}

// IntrospectToken reports whether a token is active and when it expires.
// The expiry is decoded even for tokens that fail verification.
//
// @Summary      Introspect an access token
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        body  body      introspectRequest  true  "Token to inspect"
// @Success      200   {object}  introspectResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /admin/tokens/introspect [post]
func (h *AdminHandler) IntrospectToken(c echo.Context) error {
	var req introspectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	resp := introspectResponse{}
	if exp, ok := h.peeker.PeekExpiry(req.Token); ok {
		resp.ExpiresAt = exp.UTC().Format(time.RFC3339)
		resp.Expired = !exp.After(time.Now())
	}

	v := h.svc.ValidateToken(c.Request().Context(), req.Token)
	if v.Valid {
		resp.Active = true
		resp.UserID = v.UserID
		resp.Email = v.Email
		resp.Roles = v.Roles
	}
	return c.JSON(http.StatusOK, resp)
}

// GetUser returns the public view of a user.
//
// @Summary      Get user by id
// @Tags         admin
// @Produce      json
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  domain.PublicUser
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /admin/users/{id} [get]
func (h *AdminHandler) GetUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	res := h.svc.GetUserInfo(c.Request().Context(), id)
	if !res.Success {
		return echo.NewHTTPError(outcomeStatus(res.Message), res.Message)
	}
	return c.JSON(http.StatusOK, res.User)
}

// HasRole reports whether a user holds the named role.
//
// @Summary      Check a user's role
// @Tags         admin
// @Produce      json
// @Param        id    path      int     true  "User ID"
// @Param        role  path      string  true  "Role name"
// @Success      200   {object}  roleCheckResponse
// @Failure      400   {object}  map[string]string
// @Router       /admin/users/{id}/roles/{role} [get]
func (h *AdminHandler) HasRole(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	role := c.Param("role")
	return c.JSON(http.StatusOK, roleCheckResponse{
		UserID:  id,
		Role:    role,
		HasRole: h.svc.HasRole(c.Request().Context(), id, role),
	})
}

func userID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}
	return id, nil
}

// outcomeStatus maps an orchestrator failure message to an HTTP status.
func outcomeStatus(msg string) int {
	switch msg {
	case domain.MsgUserNotFound:
		return http.StatusNotFound
	case domain.MsgUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
