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
)

// ProfileService applies self-service account changes for the calling
// user: email and password. Role and tenant membership are not
// self-editable.
type ProfileService struct {
	db     *gorm.DB
	hasher auth.Hasher
	log    *zap.Logger
}

// NewProfileService builds a ProfileService.
func NewProfileService(db *gorm.DB, hasher auth.Hasher, log *zap.Logger) *ProfileService {
	return &ProfileService{db: db, hasher: hasher, log: log}
}

// Update changes the caller's email and/or password. Both changes
// commit in one transaction. A new email that another user already
// holds is a conflict.
func (s *ProfileService) Update(ctx context.Context, caller *model.User, email, password string) (*model.User, error) {
	email = model.CanonicalEmail(email)
	if email == "" && password == "" {
		return nil, apperr.New(apperr.KindValidation, "email or password is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := store.NewUserStore(tx)
		if email != "" && email != caller.Email {
			if err := users.UpdateEmail(ctx, caller.ID, email); err != nil {
				return err
			}
		}
		if password != "" {
			hash, err := s.hasher.Hash(password)
			if err != nil {
				return err
			}
			if err := users.UpdatePasswordHash(ctx, caller.ID, hash); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.New(apperr.KindConflict, "email is already in use")
	}
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperr.Internal(err, "failed to update profile")
	}

	user, err := store.NewUserStore(s.db).GetByID(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to reload user")
	}

	s.log.Info("Profile updated",
		zap.Uint("user_id", user.ID),
		zap.Bool("email_changed", email != "" && email != caller.Email),
		zap.Bool("password_changed", password != ""))
	return user, nil
}
