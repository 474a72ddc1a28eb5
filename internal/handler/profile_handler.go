package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jtuchinsky/MCP-Auth/internal/guard"
	"github.com/jtuchinsky/MCP-Auth/internal/service"
	"github.com/jtuchinsky/MCP-Auth/prometheus"
)

// ProfileHandler serves the caller's own account: reading it and
// changing its email or password. Available to every role.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler builds a ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetProfile returns the caller's own user record.
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	caller, ok := guard.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	return c.JSON(http.StatusOK, caller)
}

// UpdateProfile changes the caller's email and/or password.
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	prometheus.RecordTenantOperation("profile_update")

	caller, ok := guard.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Email    string `json:"email,omitempty"`
		Password string `json:"password,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	user, err := h.profiles.Update(c.Request().Context(), caller, req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}
