package model

// Role is a user's authorization level within its tenant.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// AtLeastAdmin reports whether r grants admin-level access.
func (r Role) AtLeastAdmin() bool {
	return r == RoleOwner || r == RoleAdmin
}
