package model

import "strings"

// CanonicalEmail lowercases and trims an email address. Tenant and user
// emails are always stored and compared in canonical form so lookups
// are case-insensitive.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
