package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/auth"
	"github.com/jtuchinsky/MCP-Auth/internal/model"
	"github.com/jtuchinsky/MCP-Auth/internal/service"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

// handlerEnv wires real services over an in-memory database so handler
// tests exercise the full request path below the router.
type handlerEnv struct {
	db      *gorm.DB
	echo    *echo.Echo
	totp    *auth.TOTP
	auth    *AuthHandler
	totpH   *TOTPHandler
	tenants *TenantHandler
	profile *ProfileHandler
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Tenant{}, &model.User{}, &model.RefreshToken{}))

	tokens, err := auth.NewTokenManager(testSigningKey, 15*time.Minute)
	require.NoError(t, err)

	hasher := auth.NewHasher(4)
	totp := auth.NewTOTP("MCP Auth Service")
	log := zap.NewNop()

	tenantSvc := service.NewTenantService(db, hasher, log)
	sessions := service.NewSessionService(db, tenantSvc, tokens, totp, hasher, 720*time.Hour, log)
	lifecycle := service.NewLifecycleService(db, log)
	profiles := service.NewProfileService(db, hasher, log)

	return &handlerEnv{
		db:      db,
		echo:    echo.New(),
		totp:    totp,
		auth:    NewAuthHandler(sessions),
		totpH:   NewTOTPHandler(sessions),
		tenants: NewTenantHandler(db, lifecycle),
		profile: NewProfileHandler(profiles),
	}
}

// do runs a handler with a JSON body, optionally acting as the given
// caller, and returns the recorded response.
func (e *handlerEnv) do(t *testing.T, h echo.HandlerFunc, body string, caller *model.User) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	c := e.echo.NewContext(req, rec)
	c.Set("logger", zap.NewNop())
	if caller != nil {
		c.Set("caller", caller)
	}
	require.NoError(t, h(c))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (e *handlerEnv) loadUser(t *testing.T, id uint) *model.User {
	t.Helper()

	var user model.User
	require.NoError(t, e.db.First(&user, id).Error)
	return &user
}
