package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jtuchinsky/MCP-Auth/internal/service"
	"github.com/jtuchinsky/MCP-Auth/pkg/logger"
	"github.com/jtuchinsky/MCP-Auth/prometheus"
)

// AuthHandler serves login, refresh and logout.
type AuthHandler struct {
	sessions *service.SessionService
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(sessions *service.SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// LoginTenant authenticates a tenant by email and password, creating
// the tenant with its owner on first login.
func (h *AuthHandler) LoginTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordLogin("tenant")

	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		TenantName string `json:"tenant_name,omitempty"`
		TOTPCode   string `json:"totp_code,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse tenant login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("login_tenant")(time.Now())
	pair, err := h.sessions.LoginTenant(c.Request().Context(), req.Email, req.Password, req.TenantName, req.TOTPCode)
	if err != nil {
		prometheus.RecordAuthError("tenant_login_failed")
		return writeError(c, err)
	}

	prometheus.IncreaseActiveTokens()
	return c.JSON(http.StatusOK, pair)
}

// LoginUser authenticates a member user by tenant email and username.
func (h *AuthHandler) LoginUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordLogin("user")

	var req struct {
		TenantEmail string `json:"tenant_email"`
		Username    string `json:"username"`
		Password    string `json:"password"`
		TOTPCode    string `json:"totp_code,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse user login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("login_user")(time.Now())
	pair, err := h.sessions.LoginUser(c.Request().Context(), req.TenantEmail, req.Username, req.Password, req.TOTPCode)
	if err != nil {
		prometheus.RecordAuthError("user_login_failed")
		return writeError(c, err)
	}

	prometheus.IncreaseActiveTokens()
	return c.JSON(http.StatusOK, pair)
}

// Refresh rotates a refresh token and returns a fresh token pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RefreshCounter.Inc()

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		log.Warn("Failed to parse refresh request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token is required"})
	}

	defer prometheus.TrackDBOperation("refresh")(time.Now())
	pair, err := h.sessions.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		prometheus.RecordAuthError("refresh_failed")
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, pair)
}

// Logout revokes all of the token owner's refresh tokens. Idempotent:
// unknown and already-revoked tokens also return 204.
func (h *AuthHandler) Logout(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LogoutCounter.Inc()

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		log.Warn("Failed to parse logout request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token is required"})
	}

	defer prometheus.TrackDBOperation("logout")(time.Now())
	if err := h.sessions.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return writeError(c, err)
	}

	prometheus.DecreaseActiveTokens()
	return c.NoContent(http.StatusNoContent)
}
