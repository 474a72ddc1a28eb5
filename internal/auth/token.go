package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jtuchinsky/MCP-Auth/internal/apperr"
	"github.com/jtuchinsky/MCP-Auth/internal/model"
)

const minSigningKeyBytes = 32

// refreshTokenBytes gives 256 bits of entropy per opaque refresh token.
const refreshTokenBytes = 32

// Claims is the payload of a signed access token.
type Claims struct {
	Email    string   `json:"email"`
	TenantID string   `json:"tenant_id"`
	Username string   `json:"username"`
	Role     string   `json:"role"`
	Scopes   []string `json:"scopes"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into a user id.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return uint(id), nil
}

// TenantIDUint parses the tenant_id claim back into a tenant id.
func (c *Claims) TenantIDUint() (uint, error) {
	id, err := strconv.ParseUint(c.TenantID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid tenant_id %q: %w", c.TenantID, err)
	}
	return uint(id), nil
}

// TokenManager issues and parses HS256-signed access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a TokenManager. Keys shorter than 256 bits are
// rejected so a misconfigured deployment fails at startup, not at the
// first login.
func NewTokenManager(signingKey string, accessTokenTTL time.Duration) (*TokenManager, error) {
	if len(signingKey) < minSigningKeyBytes {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", minSigningKeyBytes, len(signingKey))
	}
	return &TokenManager{secret: []byte(signingKey), ttl: accessTokenTTL}, nil
}

// TTL returns the configured access-token lifetime.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue signs an access token for the user, carrying tenant and role
// claims for tenant isolation and role-based authorization.
func (m *TokenManager) Issue(user *model.User, scopes []string, now time.Time) (string, error) {
	if scopes == nil {
		scopes = []string{}
	}
	claims := Claims{
		Email:    user.Email,
		TenantID: strconv.FormatUint(uint64(user.TenantID), 10),
		Username: user.Username,
		Role:     string(user.Role),
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", apperr.Internal(err, "failed to sign access token")
	}
	return signed, nil
}

// Parse validates a presented access token. Expired tokens, bad
// signatures, wrong algorithms and malformed payloads are distinguished
// in the wrapped error for observability, but all surface uniformly as
// authentication failures.
func (m *TokenManager) Parse(tokenString string, now time.Time) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuthentication, err, parseFailureMessage(err))
	}
	if !token.Valid {
		return nil, apperr.New(apperr.KindAuthentication, "invalid token")
	}
	return &claims, nil
}

func parseFailureMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "invalid token signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable token"
	default:
		return "invalid token"
	}
}

// NewRefreshToken returns a cryptographically random, URL-safe opaque
// token string. Refresh tokens are never decoded; they are looked up by
// exact match and revoked server-side.
func NewRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.Internal(err, "failed to generate refresh token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
