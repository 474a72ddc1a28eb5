package model

import (
	"time"
)

// RefreshToken represents a long-lived, server-revocable credential used
// to mint new access tokens. The token value is opaque: it is looked up
// by exact match, never decoded.
type RefreshToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Token     string    `json:"-" gorm:"type:varchar(255);uniqueIndex;not null"`
	ClientID  string    `json:"client_id,omitempty" gorm:"type:varchar(255)"`
	Scope     string    `json:"scope,omitempty" gorm:"type:varchar(500)"`
	Revoked   bool      `json:"revoked" gorm:"not null;default:false"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`

	// Declared for the foreign key constraint only; never preloaded.
	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// IsExpired checks if the token is expired at the given time.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsValid checks if the token is usable (not expired and not revoked).
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
