package store

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/model"
)

// testDB opens an in-memory database migrated with the full schema.
// The pool is pinned to one connection because every in-memory sqlite
// connection is its own database.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, db.AutoMigrate(&model.Tenant{}, &model.User{}, &model.RefreshToken{}))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedTenant(t *testing.T, db *gorm.DB, email string) *model.Tenant {
	t.Helper()

	tenant := &model.Tenant{
		Email:        model.CanonicalEmail(email),
		TenantName:   "Acme",
		PasswordHash: "x",
		Active:       true,
	}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func seedUser(t *testing.T, db *gorm.DB, tenantID uint, username, email string, role model.Role) *model.User {
	t.Helper()

	user := &model.User{
		TenantID:     tenantID,
		Username:     username,
		Email:        model.CanonicalEmail(email),
		PasswordHash: "x",
		Role:         role,
		TenantName:   "Acme",
		Active:       true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedToken(t *testing.T, db *gorm.DB, userID uint, token string, expiresAt time.Time) *model.RefreshToken {
	t.Helper()

	rt := &model.RefreshToken{
		UserID:    userID,
		Token:     token,
		ClientID:  "test-client",
		Scope:     "read",
		ExpiresAt: expiresAt,
	}
	require.NoError(t, db.Create(rt).Error)
	return rt
}
