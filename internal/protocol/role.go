package protocol

import "strings"

// Role classifies a group participant.
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
)

// Raw admin tags reported by the protocol library.
const (
	AdminTag      = "admin"
	SuperAdminTag = "superadmin"
)

// ParseRole maps a raw admin tag to a Role. Unknown or empty tags are members.
func ParseRole(tag string) Role {
	switch strings.TrimSpace(tag) {
	case AdminTag:
		return RoleAdmin
	case SuperAdminTag:
		return RoleSuperAdmin
	default:
		return RoleMember
	}
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) IsSuperAdmin() bool {
	return r == RoleSuperAdmin
}

func (p Participant) IsAdmin() bool      { return p.Role.IsAdmin() }
func (p Participant) IsSuperAdmin() bool { return p.Role.IsSuperAdmin() }
