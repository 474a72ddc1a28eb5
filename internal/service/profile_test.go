package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtuchinsky/MCP-Auth/internal/apperr"
	"github.com/jtuchinsky/MCP-Auth/internal/model"
)

func TestProfileUpdateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, owner, _, err := env.tenants.AuthenticateOrCreate(ctx, "acme@example.com", "s3cret", "Acme")
	require.NoError(t, err)
	member := env.seedMember(t, env.loadTenant(t, owner.TenantID), "bob", "bob@example.com", "hunter2", model.RoleMember)

	// Emails store canonically no matter how they arrive.
	updated, err := env.profiles.Update(ctx, member, "Bob.New@Example.COM", "")
	require.NoError(t, err)
	assert.Equal(t, "bob.new@example.com", updated.Email)
	assert.Equal(t, "bob.new@example.com", env.loadUser(t, member.ID).Email)

	// Keeping the current email is a no-op, not a self-conflict.
	updated, err = env.profiles.Update(ctx, updated, "bob.new@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "bob.new@example.com", updated.Email)
}

func TestProfileUpdateEmailConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, owner, _, err := env.tenants.AuthenticateOrCreate(ctx, "acme@example.com", "s3cret", "Acme")
	require.NoError(t, err)
	member := env.seedMember(t, env.loadTenant(t, owner.TenantID), "bob", "bob@example.com", "hunter2", model.RoleMember)

	_, err = env.profiles.Update(ctx, member, "acme@example.com", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// The failed update changed nothing.
	assert.Equal(t, "bob@example.com", env.loadUser(t, member.ID).Email)
}

func TestProfileUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, owner, _, err := env.tenants.AuthenticateOrCreate(ctx, "acme@example.com", "s3cret", "Acme")
	require.NoError(t, err)
	env.seedMember(t, env.loadTenant(t, owner.TenantID), "bob", "bob@example.com", "hunter2", model.RoleMember)

	caller := env.loadUser(t, 2)
	_, err = env.profiles.Update(ctx, caller, "", "n3w-s3cret")
	require.NoError(t, err)

	_, err = env.sessions.LoginUser(ctx, "acme@example.com", "bob", "hunter2", "")
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
	_, err = env.sessions.LoginUser(ctx, "acme@example.com", "bob", "n3w-s3cret", "")
	require.NoError(t, err)
}

func TestProfileUpdateBothInOneCall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, owner, _, err := env.tenants.AuthenticateOrCreate(ctx, "acme@example.com", "s3cret", "Acme")
	require.NoError(t, err)
	member := env.seedMember(t, env.loadTenant(t, owner.TenantID), "bob", "bob@example.com", "hunter2", model.RoleMember)

	updated, err := env.profiles.Update(ctx, member, "bob.new@example.com", "n3w-s3cret")
	require.NoError(t, err)
	assert.Equal(t, "bob.new@example.com", updated.Email)

	_, err = env.sessions.LoginUser(ctx, "acme@example.com", "bob", "n3w-s3cret", "")
	require.NoError(t, err)
}

func TestProfileUpdateRequiresAChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, owner, _, err := env.tenants.AuthenticateOrCreate(ctx, "acme@example.com", "s3cret", "Acme")
	require.NoError(t, err)

	_, err = env.profiles.Update(ctx, owner, "", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
