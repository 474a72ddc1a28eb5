package model

import (
	"time"
)

// User represents a user account within a tenant. Usernames are unique
// per tenant, emails are globally unique. TenantName is a denormalized
// copy of the owning tenant's name, kept in sync by the lifecycle
// service's cascade updates.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TenantID     uint      `json:"tenant_id" gorm:"not null;index;uniqueIndex:uq_tenant_username"`
	Username     string    `json:"username" gorm:"type:varchar(100);not null;uniqueIndex:uq_tenant_username"`
	Email        string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	Role         Role      `json:"role" gorm:"type:varchar(50);not null;default:'MEMBER'"`
	TOTPSecret   string    `json:"-" gorm:"type:varchar(64)"`
	TOTPEnabled  bool      `json:"totp_enabled" gorm:"not null;default:false"`
	TenantName   string    `json:"tenant_name,omitempty" gorm:"type:varchar(255)"`
	Active       bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Declared for the foreign key constraint only; never preloaded.
	Tenant *Tenant `json:"-" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
}
