package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtuchinsky/MCP-Auth/internal/apperr"
	"github.com/jtuchinsky/MCP-Auth/internal/model"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func testUser() *model.User {
	return &model.User{
		ID:       42,
		TenantID: 7,
		Username: "alice",
		Email:    "alice@example.com",
		Role:     model.RoleAdmin,
	}
}

func TestNewTokenManagerRejectsShortKey(t *testing.T) {
	_, err := NewTokenManager("too-short", 15*time.Minute)
	require.Error(t, err)

	_, err = NewTokenManager(testSigningKey, 15*time.Minute)
	require.NoError(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewTokenManager(testSigningKey, 15*time.Minute)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	signed, err := m.Issue(testUser(), []string{"read", "write"}, now)
	require.NoError(t, err)

	claims, err := m.Parse(signed, now.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "7", claims.TenantID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.Equal(t, []string{"read", "write"}, claims.Scopes)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, now.Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	tenantID, err := claims.TenantIDUint()
	require.NoError(t, err)
	assert.Equal(t, uint(7), tenantID)
}

func TestTokenExpiry(t *testing.T) {
	m, err := NewTokenManager(testSigningKey, 15*time.Minute)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	signed, err := m.Issue(testUser(), nil, now)
	require.NoError(t, err)

	// Still valid one second before expiry.
	_, err = m.Parse(signed, now.Add(15*time.Minute-time.Second))
	require.NoError(t, err)

	// Rejected once now > exp.
	_, err = m.Parse(signed, now.Add(15*time.Minute+time.Second))
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
}

func TestTokenBadSignature(t *testing.T) {
	m1, err := NewTokenManager(testSigningKey, 15*time.Minute)
	require.NoError(t, err)
	m2, err := NewTokenManager("another-secret-key-of-32-bytes!!", 15*time.Minute)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	signed, err := m1.Issue(testUser(), nil, now)
	require.NoError(t, err)

	_, err = m2.Parse(signed, now)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
}

func TestTokenMalformed(t *testing.T) {
	m, err := NewTokenManager(testSigningKey, 15*time.Minute)
	require.NoError(t, err)

	for _, tok := range []string{"", "garbage", "a.b.c", "ey.ey.sig"} {
		_, err := m.Parse(tok, time.Now())
		require.Error(t, err, "token %q should not parse", tok)
		assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
	}
}

func TestTokenTamperedPayload(t *testing.T) {
	m, err := NewTokenManager(testSigningKey, 15*time.Minute)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	signed, err := m.Issue(testUser(), nil, now)
	require.NoError(t, err)

	// Flip a byte in the payload; the signature no longer matches.
	tampered := []byte(signed)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	_, err = m.Parse(string(tampered), now)
	require.Error(t, err)
}

func TestNewRefreshTokenProperties(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewRefreshToken()
		require.NoError(t, err)

		// 32 bytes of entropy, URL-safe base64 without padding.
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		require.NoError(t, err)
		assert.Len(t, raw, 32)

		assert.False(t, seen[tok], "refresh tokens must not repeat")
		seen[tok] = true
	}
}
