package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/apperr"
	"github.com/jtuchinsky/MCP-Auth/internal/model"
	"github.com/jtuchinsky/MCP-Auth/internal/store"
)

// LifecycleService applies tenant attribute and status changes with
// cascading propagation to member users. The tenant row update and the
// bulk user update always commit in one transaction, so no reader ever
// observes a tenant and its users desynchronized.
type LifecycleService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewLifecycleService builds a LifecycleService.
func NewLifecycleService(db *gorm.DB, log *zap.Logger) *LifecycleService {
	return &LifecycleService{db: db, log: log}
}

// Rename changes the tenant's display name and rewrites the
// denormalized copy on every member user.
func (s *LifecycleService) Rename(ctx context.Context, tenantID uint, name string) (*model.Tenant, int64, error) {
	var affected int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenants := store.NewTenantStore(tx)
		if _, err := tenants.GetByID(ctx, tenantID); err != nil {
			return err
		}
		if err := tenants.UpdateName(ctx, tenantID, name); err != nil {
			return err
		}
		var err error
		affected, err = store.NewUserStore(tx).BulkUpdateTenantName(ctx, tenantID, name)
		return err
	})
	if err != nil {
		return nil, 0, translateLifecycleErr(err, tenantID)
	}

	tenant, err := store.NewTenantStore(s.db).GetByID(ctx, tenantID)
	if err != nil {
		return nil, 0, apperr.Internal(err, "failed to reload tenant")
	}

	s.log.Info("Tenant renamed",
		zap.Uint("tenant_id", tenantID),
		zap.String("name", name),
		zap.Int64("users_updated", affected))
	return tenant, affected, nil
}

// SetStatus activates or deactivates the tenant and every member user,
// the OWNER included. Deactivating a tenant therefore locks out its
// owner as well; reactivation needs privileged access outside the
// role-gated API.
func (s *LifecycleService) SetStatus(ctx context.Context, tenantID uint, active bool) (*model.Tenant, int64, error) {
	var affected int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenants := store.NewTenantStore(tx)
		if _, err := tenants.GetByID(ctx, tenantID); err != nil {
			return err
		}
		if err := tenants.UpdateStatus(ctx, tenantID, active); err != nil {
			return err
		}
		var err error
		affected, err = store.NewUserStore(tx).BulkUpdateStatus(ctx, tenantID, active)
		return err
	})
	if err != nil {
		return nil, 0, translateLifecycleErr(err, tenantID)
	}

	tenant, err := store.NewTenantStore(s.db).GetByID(ctx, tenantID)
	if err != nil {
		return nil, 0, apperr.Internal(err, "failed to reload tenant")
	}

	s.log.Info("Tenant status changed",
		zap.Uint("tenant_id", tenantID),
		zap.Bool("active", active),
		zap.Int64("users_updated", affected))
	return tenant, affected, nil
}

// SoftDelete deactivates the tenant. Tenants are never hard-deleted by
// the service; only the status flag changes.
func (s *LifecycleService) SoftDelete(ctx context.Context, tenantID uint) (*model.Tenant, int64, error) {
	return s.SetStatus(ctx, tenantID, false)
}

func translateLifecycleErr(err error, tenantID uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.KindNotFound, "tenant %d not found", tenantID)
	}
	return apperr.Internal(err, "tenant update failed")
}
