package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/apperr"
	"github.com/jtuchinsky/MCP-Auth/internal/auth"
	"github.com/jtuchinsky/MCP-Auth/internal/model"
	"github.com/jtuchinsky/MCP-Auth/internal/store"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// TOTPSetup carries the secret and provisioning URI returned once when
// two-factor setup is initiated.
type TOTPSetup struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// SessionService orchestrates login, token refresh, logout and the
// TOTP state machine. It holds no per-request state; every operation is
// one bounded unit of work against the store.
type SessionService struct {
	db         *gorm.DB
	tenants    *TenantService
	tokens     *auth.TokenManager
	totp       *auth.TOTP
	hasher     auth.Hasher
	refreshTTL time.Duration
	log        *zap.Logger
	clock      func() time.Time
}

// NewSessionService builds a SessionService.
func NewSessionService(db *gorm.DB, tenants *TenantService, tokens *auth.TokenManager, totp *auth.TOTP, hasher auth.Hasher, refreshTTL time.Duration, log *zap.Logger) *SessionService {
	return &SessionService{
		db:         db,
		tenants:    tenants,
		tokens:     tokens,
		totp:       totp,
		hasher:     hasher,
		refreshTTL: refreshTTL,
		log:        log,
		clock:      time.Now,
	}
}

// LoginTenant authenticates a tenant by email and password, creating it
// on first login, and returns a token pair for the tenant's owner user.
func (s *SessionService) LoginTenant(ctx context.Context, email, password, tenantName, totpCode string) (*TokenPair, error) {
	_, owner, isNew, err := s.tenants.AuthenticateOrCreate(ctx, email, password, tenantName)
	if err != nil {
		return nil, err
	}

	if !isNew {
		if err := s.checkTOTP(owner, totpCode); err != nil {
			return nil, err
		}
	}

	pair, err := s.issueTokens(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.log.Info("Tenant login",
		zap.Uint("tenant_id", owner.TenantID),
		zap.Uint("user_id", owner.ID),
		zap.Bool("new_tenant", isNew))
	return pair, nil
}

// LoginUser authenticates a member user by tenant email and username.
func (s *SessionService) LoginUser(ctx context.Context, tenantEmail, username, password, totpCode string) (*TokenPair, error) {
	if tenantEmail == "" || username == "" || password == "" {
		return nil, apperr.New(apperr.KindValidation, "tenant email, username and password are required")
	}

	tenant, err := store.NewTenantStore(s.db).GetByEmail(ctx, tenantEmail)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindAuthentication, credentialsMsg)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to look up tenant")
	}
	if !tenant.Active {
		return nil, apperr.New(apperr.KindAuthorization, "tenant account is disabled")
	}

	user, err := store.NewUserStore(s.db).GetByTenantAndUsername(ctx, tenant.ID, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindAuthentication, credentialsMsg)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to look up user")
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindAuthentication, credentialsMsg)
	}
	if !user.Active {
		return nil, apperr.New(apperr.KindAuthorization, "user account is disabled")
	}

	if err := s.checkTOTP(user, totpCode); err != nil {
		return nil, err
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	s.log.Info("User login",
		zap.Uint("tenant_id", user.TenantID),
		zap.Uint("user_id", user.ID),
		zap.String("username", user.Username))
	return pair, nil
}

// Refresh rotates a refresh token and issues a new access token. The
// new access token carries the user's current tenant and role as stored
// now, not as cached in the old token, so role changes take effect on
// the next refresh. Concurrent refreshes with the same token succeed
// exactly once; the loser gets an authentication error.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	now := s.clock()
	tokens := store.NewTokenStore(s.db)

	rt, err := tokens.GetByToken(ctx, refreshToken)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindAuthentication, "invalid refresh token")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to look up refresh token")
	}
	if rt.Revoked {
		return nil, apperr.New(apperr.KindAuthentication, "refresh token has been revoked")
	}
	if rt.IsExpired(now) {
		return nil, apperr.New(apperr.KindAuthentication, "refresh token has expired")
	}

	user, err := store.NewUserStore(s.db).GetByID(ctx, rt.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindAuthentication, "user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to look up user")
	}
	if !user.Active {
		return nil, apperr.New(apperr.KindAuthorization, "user account is disabled")
	}

	tenant, err := store.NewTenantStore(s.db).GetByID(ctx, user.TenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindAuthentication, "tenant not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to look up tenant")
	}
	if !tenant.Active {
		return nil, apperr.New(apperr.KindAuthorization, "tenant account is disabled")
	}

	next, err := s.newRefreshToken(user.ID, rt.ClientID, rt.Scope, now)
	if err != nil {
		return nil, err
	}

	// One internal retry on the rotation race before surfacing the
	// failure: re-read the token to confirm it was consumed rather than
	// hit by a transient write conflict.
	err = tokens.Rotate(ctx, refreshToken, next)
	if errors.Is(err, store.ErrTokenRotated) {
		current, readErr := tokens.GetByToken(ctx, refreshToken)
		if readErr == nil && !current.Revoked {
			err = tokens.Rotate(ctx, refreshToken, next)
		}
	}
	if errors.Is(err, store.ErrTokenRotated) {
		return nil, apperr.New(apperr.KindAuthentication, "refresh token has been revoked")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to rotate refresh token")
	}

	access, err := s.tokens.Issue(user, splitScopes(rt.Scope), now)
	if err != nil {
		return nil, err
	}

	s.log.Info("Refresh token rotated",
		zap.Uint("user_id", user.ID),
		zap.Uint("tenant_id", user.TenantID))
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: next.Token,
		TokenType:    "bearer",
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
	}, nil
}

// Logout revokes all of the token owner's outstanding refresh tokens.
// It is idempotent: unknown or already-revoked tokens are a no-op
// success.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	tokens := store.NewTokenStore(s.db)

	rt, err := tokens.GetByToken(ctx, refreshToken)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal(err, "failed to look up refresh token")
	}

	if err := tokens.RevokeAllForUser(ctx, rt.UserID); err != nil {
		return apperr.Internal(err, "failed to revoke refresh tokens")
	}
	s.log.Info("User logged out", zap.Uint("user_id", rt.UserID))
	return nil
}

// SetupTOTP generates a fresh secret and stores it on the user without
// enabling two-factor auth. State: DISABLED -> PENDING.
func (s *SessionService) SetupTOTP(ctx context.Context, caller *model.User) (*TOTPSetup, error) {
	if caller.TOTPEnabled {
		return nil, apperr.New(apperr.KindTOTP, "TOTP is already enabled for this user")
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate TOTP secret")
	}
	if err := store.NewUserStore(s.db).UpdateTOTPSecret(ctx, caller.ID, secret); err != nil {
		return nil, apperr.Internal(err, "failed to store TOTP secret")
	}

	s.log.Info("TOTP setup initiated", zap.Uint("user_id", caller.ID))
	return &TOTPSetup{
		Secret:          secret,
		ProvisioningURI: s.totp.ProvisioningURI(secret, caller.Email),
	}, nil
}

// VerifyTOTP confirms the pending secret with a code from the
// authenticator app and enables two-factor auth.
// State: PENDING -> ENABLED.
func (s *SessionService) VerifyTOTP(ctx context.Context, caller *model.User, code string) error {
	if caller.TOTPEnabled {
		return apperr.New(apperr.KindTOTP, "TOTP is already enabled for this user")
	}
	if caller.TOTPSecret == "" {
		return apperr.New(apperr.KindTOTP, "TOTP setup not initiated")
	}

	ok, err := s.totp.VerifyCode(caller.TOTPSecret, code, s.clock())
	if err != nil {
		return apperr.Internal(err, "failed to verify TOTP code")
	}
	if !ok {
		return apperr.New(apperr.KindTOTP, "invalid TOTP code")
	}

	if err := store.NewUserStore(s.db).SetTOTPEnabled(ctx, caller.ID, true); err != nil {
		return apperr.Internal(err, "failed to enable TOTP")
	}
	s.log.Info("TOTP enabled", zap.Uint("user_id", caller.ID))
	return nil
}

// DisableTOTP turns two-factor auth off after a valid code. The secret
// is retained so re-enabling does not require re-scanning.
// State: ENABLED -> DISABLED.
func (s *SessionService) DisableTOTP(ctx context.Context, caller *model.User, code string) error {
	if !caller.TOTPEnabled {
		return apperr.New(apperr.KindTOTP, "TOTP is not enabled for this user")
	}

	ok, err := s.totp.VerifyCode(caller.TOTPSecret, code, s.clock())
	if err != nil {
		return apperr.Internal(err, "failed to verify TOTP code")
	}
	if !ok {
		return apperr.New(apperr.KindTOTP, "invalid TOTP code")
	}

	if err := store.NewUserStore(s.db).SetTOTPEnabled(ctx, caller.ID, false); err != nil {
		return apperr.Internal(err, "failed to disable TOTP")
	}
	s.log.Info("TOTP disabled", zap.Uint("user_id", caller.ID))
	return nil
}

// checkTOTP enforces step-up verification during login for users with
// two-factor auth enabled. A missing code is workflow misuse; a wrong
// code is an authentication failure.
func (s *SessionService) checkTOTP(user *model.User, code string) error {
	if !user.TOTPEnabled {
		return nil
	}
	if code == "" {
		return apperr.New(apperr.KindTOTP, "TOTP code required")
	}
	ok, err := s.totp.VerifyCode(user.TOTPSecret, code, s.clock())
	if err != nil {
		return apperr.Internal(err, "failed to verify TOTP code")
	}
	if !ok {
		return apperr.New(apperr.KindAuthentication, "invalid TOTP code")
	}
	return nil
}

func (s *SessionService) issueTokens(ctx context.Context, user *model.User) (*TokenPair, error) {
	now := s.clock()

	access, err := s.tokens.Issue(user, nil, now)
	if err != nil {
		return nil, err
	}

	refresh, err := s.newRefreshToken(user.ID, "", "", now)
	if err != nil {
		return nil, err
	}
	if err := store.NewTokenStore(s.db).Create(ctx, refresh); err != nil {
		return nil, apperr.Internal(err, "failed to store refresh token")
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		TokenType:    "bearer",
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
	}, nil
}

func (s *SessionService) newRefreshToken(userID uint, clientID, scope string, now time.Time) (*model.RefreshToken, error) {
	value, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	return &model.RefreshToken{
		UserID:    userID,
		Token:     value,
		ClientID:  clientID,
		Scope:     scope,
		ExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

func splitScopes(scope string) []string {
	if scope == "" {
		return nil
	}
	return strings.Fields(scope)
}
