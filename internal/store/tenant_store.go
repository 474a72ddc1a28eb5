// Package store contains the repositories over the credential database.
// Every method returns fresh rows per call; nothing is cached in memory.
package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/model"
)

// TenantStore persists tenants.
type TenantStore struct {
	db *gorm.DB
}

// NewTenantStore binds a TenantStore to a database handle. Pass a
// transaction handle to scope the store's operations to it.
func NewTenantStore(db *gorm.DB) *TenantStore {
	return &TenantStore{db: db}
}

// GetByEmail looks a tenant up by canonical (lowercased) email.
func (s *TenantStore) GetByEmail(ctx context.Context, email string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := s.db.WithContext(ctx).
		Where("email = ?", model.CanonicalEmail(email)).
		First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// GetByID looks a tenant up by primary key.
func (s *TenantStore) GetByID(ctx context.Context, id uint) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

// Create inserts a tenant. The email must already be canonical.
func (s *TenantStore) Create(ctx context.Context, tenant *model.Tenant) error {
	return s.db.WithContext(ctx).Create(tenant).Error
}

// UpdateName changes the tenant's display name.
func (s *TenantStore) UpdateName(ctx context.Context, id uint, name string) error {
	return s.db.WithContext(ctx).
		Model(&model.Tenant{}).
		Where("id = ?", id).
		Update("tenant_name", name).Error
}

// UpdateStatus flips the tenant's active flag.
func (s *TenantStore) UpdateStatus(ctx context.Context, id uint, active bool) error {
	return s.db.WithContext(ctx).
		Model(&model.Tenant{}).
		Where("id = ?", id).
		Update("active", active).Error
}
