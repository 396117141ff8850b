package domain

// Role determines what a caller may do through the public API.
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleDispatcher Role = "dispatcher"
	RoleCommander  Role = "commander"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	return r.level() > 0
}

// HasPermission reports whether the role satisfies the minimum required role.
func (r Role) HasPermission(min Role) bool {
	return r.level() >= min.level()
}

func (r Role) level() int {
	switch r {
	case RoleCommander:
		return 3
	case RoleDispatcher:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}
