// Package guard validates presented access tokens and enforces the
// tenant-isolation and role invariants for every protected operation.
package guard

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/apperr"
	"github.com/jtuchinsky/MCP-Auth/internal/auth"
	"github.com/jtuchinsky/MCP-Auth/internal/model"
	"github.com/jtuchinsky/MCP-Auth/internal/store"
	"github.com/jtuchinsky/MCP-Auth/pkg/logger"
	"github.com/jtuchinsky/MCP-Auth/prometheus"
)

// callerKey is the echo context key carrying the resolved caller.
const callerKey = "caller"

// Guard resolves callers from access tokens.
type Guard struct {
	tokens *auth.TokenManager
	db     *gorm.DB
	log    *zap.Logger
	clock  func() time.Time
}

// New builds a Guard.
func New(tokens *auth.TokenManager, db *gorm.DB, log *zap.Logger) *Guard {
	return &Guard{tokens: tokens, db: db, log: log, clock: time.Now}
}

// ResolveCaller validates a presented access token and loads the
// calling user. Each step fails distinctly: signature/expiry, user
// existence, user active, tenant active, and finally the
// tenant-isolation check: the tenant id embedded in the token must
// equal the user's current tenant id in storage. A mismatch means
// tampering or staleness and is rejected even with a valid signature.
func (g *Guard) ResolveCaller(ctx context.Context, token string, now time.Time) (*model.User, error) {
	claims, err := g.tokens.Parse(token, now)
	if err != nil {
		return nil, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuthentication, err, "invalid token payload")
	}
	tokenTenantID, err := claims.TenantIDUint()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuthentication, err, "invalid token payload")
	}

	user, err := store.NewUserStore(g.db).GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindAuthentication, "user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to look up user")
	}
	if !user.Active {
		return nil, apperr.New(apperr.KindAuthorization, "user account is disabled")
	}

	tenant, err := store.NewTenantStore(g.db).GetByID(ctx, user.TenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindAuthentication, "tenant not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to look up tenant")
	}
	if !tenant.Active {
		return nil, apperr.New(apperr.KindAuthorization, "tenant account is disabled")
	}

	if user.TenantID != tokenTenantID {
		g.log.Warn("Tenant isolation violation",
			zap.Uint("user_id", user.ID),
			zap.Uint("token_tenant_id", tokenTenantID),
			zap.Uint("stored_tenant_id", user.TenantID))
		return nil, apperr.New(apperr.KindAuthorization, "tenant mismatch")
	}

	return user, nil
}

// RequireRole checks the user's role against the allowed set, naming
// the required and actual roles on failure.
func RequireRole(user *model.User, roles ...model.Role) error {
	for _, r := range roles {
		if user.Role == r {
			return nil
		}
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return apperr.New(apperr.KindAuthorization,
		"requires role %s, have %s", strings.Join(names, " or "), user.Role)
}

// Middleware extracts the bearer token from the Authorization header,
// resolves the caller and stores it in the request context.
func (g *Guard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			user, err := g.ResolveCaller(c.Request().Context(), parts[1], g.clock())
			if err != nil {
				log.Warn("Failed to resolve caller", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				kind := apperr.KindOf(err)
				return c.JSON(kind.HTTPStatus(), echo.Map{"error": apperr.Message(err)})
			}

			c.Set(callerKey, user)
			return next(c)
		}
	}
}

// CallerFrom returns the caller resolved by Middleware.
func CallerFrom(c echo.Context) (*model.User, bool) {
	user, ok := c.Get(callerKey).(*model.User)
	return user, ok
}
