package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/model"
)

// ErrTokenRotated is returned by Rotate when the presented token was
// already revoked, which happens when two refresh calls race on the
// same token and this one lost.
var ErrTokenRotated = errors.New("refresh token already rotated")

// TokenStore persists refresh tokens.
type TokenStore struct {
	db *gorm.DB
}

// NewTokenStore binds a TokenStore to a database handle.
func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Create inserts a refresh token.
func (s *TokenStore) Create(ctx context.Context, token *model.RefreshToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

// GetByToken looks a refresh token up by its opaque value.
func (s *TokenStore) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&rt).Error
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// Rotate atomically revokes the presented token and inserts its
// replacement. The revoke is a single conditional update; a zero
// affected-row count means another refresh call already consumed the
// token, and the whole transaction rolls back with ErrTokenRotated.
// This is what guarantees that concurrent refreshes with the same token
// succeed exactly once.
func (s *TokenStore) Rotate(ctx context.Context, presented string, next *model.RefreshToken) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.RefreshToken{}).
			Where("token = ? AND revoked = ?", presented, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenRotated
		}
		return tx.Create(next).Error
	})
}

// RevokeAllForUser revokes every non-revoked token of the user. It is
// idempotent: revoking an already-revoked set is a no-op.
func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}

// DeleteExpired removes tokens past their expiry. Revoked rows are kept
// until they expire so double-use attempts stay observable.
func (s *TokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}
