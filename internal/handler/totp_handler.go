package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jtuchinsky/MCP-Auth/internal/guard"
	"github.com/jtuchinsky/MCP-Auth/internal/service"
	"github.com/jtuchinsky/MCP-Auth/prometheus"
)

// TOTPHandler serves the two-factor setup, verify and disable flow for
// authenticated callers.
type TOTPHandler struct {
	sessions *service.SessionService
}

// NewTOTPHandler builds a TOTPHandler.
func NewTOTPHandler(sessions *service.SessionService) *TOTPHandler {
	return &TOTPHandler{sessions: sessions}
}

// Setup generates a TOTP secret for the caller and returns it with the
// provisioning URI. TOTP stays disabled until Verify confirms a code.
func (h *TOTPHandler) Setup(c echo.Context) error {
	prometheus.RecordTOTPOperation("setup")

	caller, ok := guard.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	setup, err := h.sessions.SetupTOTP(c.Request().Context(), caller)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, setup)
}

// Verify confirms a pending TOTP secret and enables two-factor auth.
func (h *TOTPHandler) Verify(c echo.Context) error {
	prometheus.RecordTOTPOperation("verify")

	caller, ok := guard.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		TOTPCode string `json:"totp_code"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := h.sessions.VerifyTOTP(c.Request().Context(), caller, req.TOTPCode); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "TOTP enabled"})
}

// Disable turns two-factor auth off after a valid code.
func (h *TOTPHandler) Disable(c echo.Context) error {
	prometheus.RecordTOTPOperation("disable")

	caller, ok := guard.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		TOTPCode string `json:"totp_code"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := h.sessions.DisableTOTP(c.Request().Context(), caller, req.TOTPCode); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "TOTP disabled"})
}
