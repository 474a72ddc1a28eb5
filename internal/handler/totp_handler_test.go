package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTPEndpointFlow(t *testing.T) {
	env := newHandlerEnv(t)
	owner := provisionTenant(t, env, "acme@example.com")

	// Verify and disable before setup are workflow misuse.
	rec := env.do(t, env.totpH.Verify, `{"totp_code":"123456"}`, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, env.totpH.Disable, `{"totp_code":"123456"}`, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, env.totpH.Setup, `{}`, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	secret := body["secret"].(string)
	assert.Contains(t, body["provisioning_uri"], "otpauth://totp/")

	// A wrong code does not enable 2FA.
	rec = env.do(t, env.totpH.Verify, `{"totp_code":"000000"}`, env.loadUser(t, owner.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.loadUser(t, owner.ID).TOTPEnabled)

	code, err := env.totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	rec = env.do(t, env.totpH.Verify, fmt.Sprintf(`{"totp_code":%q}`, code), env.loadUser(t, owner.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.loadUser(t, owner.ID).TOTPEnabled)

	// Setup while enabled is rejected.
	rec = env.do(t, env.totpH.Setup, `{}`, env.loadUser(t, owner.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, err = env.totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	rec = env.do(t, env.totpH.Disable, fmt.Sprintf(`{"totp_code":%q}`, code), env.loadUser(t, owner.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.loadUser(t, owner.ID).TOTPEnabled)
}

func TestTOTPEndpointsRequireCaller(t *testing.T) {
	env := newHandlerEnv(t)

	for _, h := range []struct {
		name    string
		handler func() int
	}{
		{"setup", func() int { return env.do(t, env.totpH.Setup, `{}`, nil).Code }},
		{"verify", func() int { return env.do(t, env.totpH.Verify, `{"totp_code":"123456"}`, nil).Code }},
		{"disable", func() int { return env.do(t, env.totpH.Disable, `{"totp_code":"123456"}`, nil).Code }},
	} {
		t.Run(h.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, h.handler())
		})
	}
}
