package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/guard"
	"github.com/jtuchinsky/MCP-Auth/internal/model"
	"github.com/jtuchinsky/MCP-Auth/internal/service"
	"github.com/jtuchinsky/MCP-Auth/internal/store"
	"github.com/jtuchinsky/MCP-Auth/prometheus"
)

// TenantHandler serves profile and tenant management for authenticated
// callers. All operations are scoped to the caller's own tenant; there
// is no way to address another tenant's data.
type TenantHandler struct {
	db        *gorm.DB
	lifecycle *service.LifecycleService
}

// NewTenantHandler builds a TenantHandler.
func NewTenantHandler(db *gorm.DB, lifecycle *service.LifecycleService) *TenantHandler {
	return &TenantHandler{db: db, lifecycle: lifecycle}
}

// GetMyTenant returns the caller's tenant. Any role may read it.
func (h *TenantHandler) GetMyTenant(c echo.Context) error {
	prometheus.RecordTenantOperation("access")

	caller, ok := guard.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	tenant, err := store.NewTenantStore(h.db).GetByID(c.Request().Context(), caller.TenantID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}
	return c.JSON(http.StatusOK, tenant)
}

// UpdateTenant renames the caller's tenant, cascading the new name to
// every member user. Requires OWNER or ADMIN.
func (h *TenantHandler) UpdateTenant(c echo.Context) error {
	prometheus.RecordTenantOperation("rename")

	caller, ok := guard.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	if err := guard.RequireRole(caller, model.RoleOwner, model.RoleAdmin); err != nil {
		return writeError(c, err)
	}

	var req struct {
		TenantName string `json:"tenant_name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.TenantName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_name is required"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	tenant, _, err := h.lifecycle.Rename(c.Request().Context(), caller.TenantID, req.TenantName)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}

// SetTenantStatus activates or deactivates the caller's tenant,
// cascading to every member user including the OWNER. Requires OWNER;
// ADMIN is deliberately excluded since deactivation locks out the
// owner too.
func (h *TenantHandler) SetTenantStatus(c echo.Context) error {
	prometheus.RecordTenantOperation("status")

	caller, ok := guard.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	if err := guard.RequireRole(caller, model.RoleOwner); err != nil {
		return writeError(c, err)
	}

	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "active is required"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	tenant, _, err := h.lifecycle.SetStatus(c.Request().Context(), caller.TenantID, *req.Active)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}

// DeleteTenant soft-deletes the caller's tenant: the tenant and every
// member user are deactivated, nothing is removed. Requires OWNER.
func (h *TenantHandler) DeleteTenant(c echo.Context) error {
	prometheus.RecordTenantOperation("delete")

	caller, ok := guard.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	if err := guard.RequireRole(caller, model.RoleOwner); err != nil {
		return writeError(c, err)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	tenant, _, err := h.lifecycle.SoftDelete(c.Request().Context(), caller.TenantID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}

// ListTenantUsers returns every user of the caller's tenant. Requires
// OWNER or ADMIN.
func (h *TenantHandler) ListTenantUsers(c echo.Context) error {
	prometheus.RecordTenantOperation("list_users")

	caller, ok := guard.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	if err := guard.RequireRole(caller, model.RoleOwner, model.RoleAdmin); err != nil {
		return writeError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	users, err := store.NewUserStore(h.db).ListByTenant(c.Request().Context(), caller.TenantID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list users"})
	}
	return c.JSON(http.StatusOK, users)
}
