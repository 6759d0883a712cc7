package models

// Role is the closed set of user roles. The raw string column is validated
// through ParseRole at every boundary; client input never reaches the role
// column except through the admin role-change path.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleTeamlead Role = "Teamlead"
	RoleAgent    Role = "Agent"
)

// ParseRole validates a raw role string.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleTeamlead, RoleAgent:
		return Role(s), true
	}
	return "", false
}

func (r Role) IsValid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// CanImport reports whether the role may run bulk imports.
func (r Role) CanImport() bool {
	return r == RoleAdmin || r == RoleTeamlead
}

// CanViewAnalytics reports whether the role may read agent analytics.
func (r Role) CanViewAnalytics() bool {
	return r == RoleAdmin || r == RoleTeamlead
}
