package service

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/auth"
	"github.com/jtuchinsky/MCP-Auth/internal/model"
)

const (
	testSigningKey = "0123456789abcdef0123456789abcdef"
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 720 * time.Hour
)

// testEnv wires the full service stack over an in-memory database. The
// clock starts fixed so token lifetimes are deterministic; advance it
// through setNow.
type testEnv struct {
	db        *gorm.DB
	hasher    auth.Hasher
	tokens    *auth.TokenManager
	totp      *auth.TOTP
	tenants   *TenantService
	sessions  *SessionService
	lifecycle *LifecycleService
	profiles  *ProfileService
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, db.AutoMigrate(&model.Tenant{}, &model.User{}, &model.RefreshToken{}))

	tokens, err := auth.NewTokenManager(testSigningKey, testAccessTTL)
	require.NoError(t, err)

	// Minimum bcrypt cost keeps the suite fast.
	hasher := auth.NewHasher(4)
	totp := auth.NewTOTP("MCP Auth Service")
	log := zap.NewNop()

	env := &testEnv{
		db:        db,
		hasher:    hasher,
		tokens:    tokens,
		totp:      totp,
		tenants:   NewTenantService(db, hasher, log),
		lifecycle: NewLifecycleService(db, log),
		profiles:  NewProfileService(db, hasher, log),
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.sessions = NewSessionService(db, env.tenants, tokens, totp, hasher, testRefreshTTL, log)
	env.sessions.clock = func() time.Time { return env.now }
	return env
}

func (e *testEnv) setNow(t time.Time) { e.now = t }

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

// seedMember creates a member user under the tenant with a real bcrypt
// hash so login flows can verify the password.
func (e *testEnv) seedMember(t *testing.T, tenant *model.Tenant, username, email, password string, role model.Role) *model.User {
	t.Helper()

	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)

	user := &model.User{
		TenantID:     tenant.ID,
		Username:     username,
		Email:        model.CanonicalEmail(email),
		PasswordHash: hash,
		Role:         role,
		TenantName:   tenant.TenantName,
		Active:       true,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) loadUser(t *testing.T, id uint) *model.User {
	t.Helper()

	var user model.User
	require.NoError(t, e.db.First(&user, id).Error)
	return &user
}

func (e *testEnv) loadTenant(t *testing.T, id uint) *model.Tenant {
	t.Helper()

	var tenant model.Tenant
	require.NoError(t, e.db.First(&tenant, id).Error)
	return &tenant
}
