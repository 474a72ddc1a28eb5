package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtuchinsky/MCP-Auth/internal/model"
)

// provisionTenant logs a tenant in through the real endpoint and
// returns its owner user.
func provisionTenant(t *testing.T, env *handlerEnv, email string) *model.User {
	t.Helper()

	rec := env.do(t, env.auth.LoginTenant,
		`{"email":"`+email+`","password":"s3cret","tenant_name":"Acme"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var owner model.User
	require.NoError(t, env.db.Where("email = ?", email).First(&owner).Error)
	return &owner
}

func seedMember(t *testing.T, env *handlerEnv, tenantID uint, username string, role model.Role) *model.User {
	t.Helper()

	user := &model.User{
		TenantID:     tenantID,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         role,
		TenantName:   "Acme",
		Active:       true,
	}
	require.NoError(t, env.db.Create(user).Error)
	return user
}

func TestGetMyTenant(t *testing.T) {
	env := newHandlerEnv(t)
	owner := provisionTenant(t, env, "acme@example.com")
	member := seedMember(t, env, owner.TenantID, "bob", model.RoleMember)

	// Any role may read its own tenant.
	rec := env.do(t, env.tenants.GetMyTenant, `{}`, member)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme@example.com", decodeBody(t, rec)["email"])
}

func TestUpdateTenantRequiresAdmin(t *testing.T) {
	env := newHandlerEnv(t)
	owner := provisionTenant(t, env, "acme@example.com")
	member := seedMember(t, env, owner.TenantID, "bob", model.RoleMember)

	rec := env.do(t, env.tenants.UpdateTenant, `{"tenant_name":"Evil"}`, member)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, env.tenants.UpdateTenant, `{"tenant_name":""}`, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, env.tenants.UpdateTenant, `{"tenant_name":"Acme Rebranded"}`, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme Rebranded", decodeBody(t, rec)["tenant_name"])

	// The rename cascaded onto the member's denormalized copy.
	assert.Equal(t, "Acme Rebranded", env.loadUser(t, member.ID).TenantName)
}

func TestSetTenantStatusOwnerOnly(t *testing.T) {
	env := newHandlerEnv(t)
	owner := provisionTenant(t, env, "acme@example.com")
	admin := seedMember(t, env, owner.TenantID, "alice", model.RoleAdmin)

	// ADMIN may rename but not deactivate.
	rec := env.do(t, env.tenants.SetTenantStatus, `{"active":false}`, admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, env.tenants.SetTenantStatus, `{}`, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, env.tenants.SetTenantStatus, `{"active":false}`, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["active"])

	// Everyone in the tenant was deactivated, the owner included.
	assert.False(t, env.loadUser(t, owner.ID).Active)
	assert.False(t, env.loadUser(t, admin.ID).Active)
}

func TestDeleteTenantOwnerOnly(t *testing.T) {
	env := newHandlerEnv(t)
	owner := provisionTenant(t, env, "acme@example.com")
	admin := seedMember(t, env, owner.TenantID, "alice", model.RoleAdmin)
	member := seedMember(t, env, owner.TenantID, "bob", model.RoleMember)

	rec := env.do(t, env.tenants.DeleteTenant, `{}`, admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, env.tenants.DeleteTenant, `{}`, member)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, env.tenants.DeleteTenant, `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, env.tenants.DeleteTenant, `{}`, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["active"])

	// Soft delete: every user is deactivated, no row disappears.
	for _, id := range []uint{owner.ID, admin.ID, member.ID} {
		assert.False(t, env.loadUser(t, id).Active)
	}
	var count int64
	require.NoError(t, env.db.Model(&model.Tenant{}).Where("id = ?", owner.TenantID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestListTenantUsers(t *testing.T) {
	env := newHandlerEnv(t)
	owner := provisionTenant(t, env, "acme@example.com")
	member := seedMember(t, env, owner.TenantID, "bob", model.RoleMember)

	// Another tenant's users never show up.
	provisionTenant(t, env, "globex@example.com")

	rec := env.do(t, env.tenants.ListTenantUsers, `{}`, member)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, env.tenants.ListTenantUsers, `{}`, owner)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "acme@example.com", users[0]["username"])
	assert.Equal(t, "bob", users[1]["username"])
}
