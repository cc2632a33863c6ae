package core

import "strings"

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	// Corrector
	RoleCorrector = "corrector:"

	// Student
	RoleStudent = "student:"
)

var AllRoles = []string{RoleAdmin, RoleAdminOwner, RoleCorrector, RoleStudent}

// Principal is the authenticated caller of a state-mutating operation.
// Authorization is decided from its role set, never from ad-hoc email
// comparisons.
type Principal struct {
	ID    string
	Name  string
	Email string
	Roles []string
}

func (p Principal) RoleStartsWith(prefix string) bool {
	for _, role := range p.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (p Principal) IsAdmin() bool {
	return p.RoleStartsWith(RoleAdmin)
}

func (p Principal) IsCorrector() bool {
	return p.RoleStartsWith(RoleCorrector)
}

func (p Principal) IsStudent() bool {
	return p.RoleStartsWith(RoleStudent)
}
