package model

import (
	"time"
)

// Tenant represents a tenant organization stored in the database.
// Tenants are identified by a globally unique email address and hold
// their own credentials: logging in with an unseen tenant email creates
// the tenant together with its owner user.
type Tenant struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	TenantName   string    `json:"tenant_name,omitempty" gorm:"type:varchar(255)"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	Active       bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
