package models

import (
	"fmt"
	"strings"
)

// Role is a role name granted by the identity provider.
type Role string

const (
	RoleStudent     Role = "STUDENT"
	RoleProfessor   Role = "PROFESSOR"
	RoleCoordinator Role = "COORDINATOR"
	RoleAdmin       Role = "ADMIN"
)

// RolePriorityVersion identifies the ordering in RolePriority. Bump it whenever
// the order changes so stored reconciliation records can be traced back.
const RolePriorityVersion = 1

// RolePriority is the order used to pick a single role for an identity that
// holds several. Earlier entries win.
var RolePriority = [...]Role{RoleCoordinator, RoleStudent, RoleProfessor, RoleAdmin}

// MirroredRoles are the roles that own a local profile shape.
var MirroredRoles = [...]Role{RoleStudent, RoleProfessor, RoleCoordinator}

// ParseRole maps a role name to a Role, case-insensitively.
func ParseRole(name string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(name))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleProfessor:
		return RoleProfessor, nil
	case RoleCoordinator:
		return RoleCoordinator, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", name)
	}
}

// IsRelevant reports whether the role is exposed in the unified listing.
func (r Role) IsRelevant() bool {
	return r.priority() >= 0
}

// IsMirrored reports whether the role has a local profile shape.
func (r Role) IsMirrored() bool {
	return r == RoleStudent || r == RoleProfessor || r == RoleCoordinator
}

func (r Role) String() string {
	return string(r)
}

func (r Role) priority() int {
	for i, candidate := range RolePriority {
		if candidate == r {
			return i
		}
	}
	return -1
}

// HighestPriorityRole returns the role from names that ranks first in
// RolePriority. Unknown names are ignored. The second result is false when none
// of the names is relevant.
func HighestPriorityRole(names []string) (Role, bool) {
	best := -1
	for _, name := range names {
		role, err := ParseRole(name)
		if err != nil {
			continue
		}
		if p := role.priority(); p >= 0 && (best < 0 || p < best) {
			best = p
		}
	}
	if best < 0 {
		return "", false
	}
	return RolePriority[best], true
}

// HighestMirroredRole is HighestPriorityRole restricted to mirrored roles.
func HighestMirroredRole(names []string) (Role, bool) {
	mirrored := make([]string, 0, len(names))
	for _, name := range names {
		if role, err := ParseRole(name); err == nil && role.IsMirrored() {
			mirrored = append(mirrored, name)
		}
	}
	return HighestPriorityRole(mirrored)
}
