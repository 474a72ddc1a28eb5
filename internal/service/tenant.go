// Package service implements the core operations of the credential and
// session service: tenant provisioning, login/refresh/logout, the TOTP
// state machine, and cascading tenant lifecycle changes.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/apperr"
	"github.com/jtuchinsky/MCP-Auth/internal/auth"
	"github.com/jtuchinsky/MCP-Auth/internal/model"
	"github.com/jtuchinsky/MCP-Auth/internal/store"
	"github.com/jtuchinsky/MCP-Auth/prometheus"
)

// credentialsMsg is the uniform login failure message. It never reveals
// whether the tenant, the user or the password was wrong, to avoid
// account enumeration.
const credentialsMsg = "invalid email or password"

// TenantService resolves or provisions tenants on login.
type TenantService struct {
	db     *gorm.DB
	hasher auth.Hasher
	log    *zap.Logger
}

// NewTenantService builds a TenantService.
func NewTenantService(db *gorm.DB, hasher auth.Hasher, log *zap.Logger) *TenantService {
	return &TenantService{db: db, hasher: hasher, log: log}
}

// AuthenticateOrCreate resolves a tenant by canonical email and verifies
// its password, or creates the tenant together with its owner user when
// the email has never been seen. Two concurrent first-logins with the
// same email race on the store's unique constraint: the loser retries
// once and authenticates against the winner's row instead of failing.
func (s *TenantService) AuthenticateOrCreate(ctx context.Context, email, password, tenantName string) (*model.Tenant, *model.User, bool, error) {
	email = model.CanonicalEmail(email)
	if email == "" || password == "" {
		return nil, nil, false, apperr.New(apperr.KindValidation, "email and password are required")
	}

	tenants := store.NewTenantStore(s.db)

	tenant, err := tenants.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tenant, owner, createErr := s.createWithOwner(ctx, email, password, tenantName)
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			// Lost the first-login race: the tenant now exists, so
			// authenticate against it instead of failing the request.
			s.log.Info("Tenant creation raced, authenticating instead", zap.String("email", email))
			tenant, owner, authErr := s.authenticate(ctx, email, password)
			return tenant, owner, false, authErr
		}
		if createErr != nil {
			return nil, nil, false, createErr
		}
		prometheus.TenantProvisionCounter.Inc()
		s.log.Info("Tenant provisioned",
			zap.Uint("tenant_id", tenant.ID),
			zap.String("email", tenant.Email),
			zap.Uint("owner_id", owner.ID))
		return tenant, owner, true, nil
	}
	if err != nil {
		return nil, nil, false, apperr.Internal(err, "failed to look up tenant")
	}

	tenant, owner, err := s.verifyExisting(ctx, tenant, password)
	return tenant, owner, false, err
}

func (s *TenantService) authenticate(ctx context.Context, email, password string) (*model.Tenant, *model.User, error) {
	tenant, err := store.NewTenantStore(s.db).GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperr.New(apperr.KindAuthentication, credentialsMsg)
	}
	if err != nil {
		return nil, nil, apperr.Internal(err, "failed to look up tenant")
	}
	return s.verifyExisting(ctx, tenant, password)
}

func (s *TenantService) verifyExisting(ctx context.Context, tenant *model.Tenant, password string) (*model.Tenant, *model.User, error) {
	ok, err := s.hasher.Verify(password, tenant.PasswordHash)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperr.New(apperr.KindAuthentication, credentialsMsg)
	}
	if !tenant.Active {
		return nil, nil, apperr.New(apperr.KindAuthorization, "tenant account is disabled")
	}

	owner, err := s.resolveOwner(ctx, tenant)
	if err != nil {
		return nil, nil, err
	}
	if !owner.Active {
		return nil, nil, apperr.New(apperr.KindAuthorization, "tenant owner account is disabled")
	}
	return tenant, owner, nil
}

// resolveOwner fetches the tenant's OWNER user, lazily creating one for
// tenants migrated from before owners existed.
func (s *TenantService) resolveOwner(ctx context.Context, tenant *model.Tenant) (*model.User, error) {
	users := store.NewUserStore(s.db)

	owner, err := users.GetTenantOwner(ctx, tenant.ID)
	if err == nil {
		return owner, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal(err, "failed to look up tenant owner")
	}

	owner = &model.User{
		TenantID:     tenant.ID,
		Username:     tenant.Email,
		Email:        tenant.Email,
		PasswordHash: tenant.PasswordHash,
		Role:         model.RoleOwner,
		TenantName:   tenant.TenantName,
		Active:       true,
	}
	if err := users.Create(ctx, owner); err != nil {
		return nil, apperr.Internal(err, "failed to create tenant owner")
	}
	s.log.Info("Lazily created owner for legacy tenant",
		zap.Uint("tenant_id", tenant.ID),
		zap.Uint("owner_id", owner.ID))
	return owner, nil
}

// createWithOwner creates the tenant and its owner user in a single
// transaction. The owner inherits the tenant's email as username and
// shares its password hash, which is computed once.
func (s *TenantService) createWithOwner(ctx context.Context, email, password, tenantName string) (*model.Tenant, *model.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, err
	}

	tenant := &model.Tenant{
		Email:        email,
		TenantName:   tenantName,
		PasswordHash: hash,
		Active:       true,
	}
	owner := &model.User{
		Username:     email,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleOwner,
		TenantName:   tenantName,
		Active:       true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := store.NewTenantStore(tx).Create(ctx, tenant); err != nil {
			return err
		}
		owner.TenantID = tenant.ID
		return store.NewUserStore(tx).Create(ctx, owner)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, err
		}
		return nil, nil, apperr.Internal(err, "failed to create tenant")
	}
	return tenant, owner, nil
}
