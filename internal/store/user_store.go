package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/model"
)

// UserStore persists users.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore binds a UserStore to a database handle.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// GetByID looks a user up by primary key.
func (s *UserStore) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail looks a user up by canonical email. User emails are
// globally unique.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("email = ?", model.CanonicalEmail(email)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByTenantAndUsername looks a user up by tenant-scoped username.
func (s *UserStore) GetByTenantAndUsername(ctx context.Context, tenantID uint, username string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND username = ?", tenantID, username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetTenantOwner returns the tenant's OWNER user.
func (s *UserStore) GetTenantOwner(ctx context.Context, tenantID uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND role = ?", tenantID, model.RoleOwner).
		Order("id").
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a user.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

// ListByTenant returns every user belonging to the tenant.
func (s *UserStore) ListByTenant(ctx context.Context, tenantID uint) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// CountByTenant counts the tenant's users.
func (s *UserStore) CountByTenant(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}

// UpdateEmail changes the user's email, stored in canonical form.
func (s *UserStore) UpdateEmail(ctx context.Context, userID uint, email string) error {
	return s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("email", model.CanonicalEmail(email)).Error
}

// UpdatePasswordHash replaces the user's stored password hash.
func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID uint, hash string) error {
	return s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash).Error
}

// UpdateTOTPSecret stores a pending TOTP secret without enabling 2FA.
func (s *UserStore) UpdateTOTPSecret(ctx context.Context, userID uint, secret string) error {
	return s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("totp_secret", secret).Error
}

// SetTOTPEnabled flips the user's 2FA flag. The secret is retained on
// disable so re-enabling does not require re-scanning.
func (s *UserStore) SetTOTPEnabled(ctx context.Context, userID uint, enabled bool) error {
	return s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("totp_enabled", enabled).Error
}

// BulkUpdateTenantName rewrites the denormalized tenant name on every
// user of the tenant, returning the number of rows touched.
func (s *UserStore) BulkUpdateTenantName(ctx context.Context, tenantID uint, name string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("tenant_id = ?", tenantID).
		Update("tenant_name", name)
	return res.RowsAffected, res.Error
}

// BulkUpdateStatus flips the active flag on every user of the tenant,
// the OWNER included, returning the number of rows touched.
func (s *UserStore) BulkUpdateStatus(ctx context.Context, tenantID uint, active bool) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("tenant_id = ?", tenantID).
		Update("active", active)
	return res.RowsAffected, res.Error
}
