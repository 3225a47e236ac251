package rbac

import (
	"fmt"
	"strings"
)

// Role is an admin-portal access level. Higher ranks grant more access.
type Role int

const (
	RoleViewer Role = iota // read-only dashboards and logs
	RoleAdmin              // manages role assignments
	RoleOwner              // full control
)

// Roles lists every role from least to most privileged.
var Roles = []Role{RoleViewer, RoleAdmin, RoleOwner}

var roleNames = map[Role]string{
	RoleViewer: "viewer",
	RoleAdmin:  "admin",
	RoleOwner:  "owner",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Rank is the position of r in the viewer < admin < owner order.
func (r Role) Rank() int { return int(r) }

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole maps a stored role string to a Role. Matching is exact and
// case-sensitive; anything else is reported as not recognized.
func ParseRole(s string) (Role, bool) {
	for role, name := range roleNames {
		if name == s {
			return role, true
		}
	}
	return RoleViewer, false
}

// IsRecognized reports whether s is exactly "viewer", "admin" or "owner".
func IsRecognized(s string) bool {
	_, ok := ParseRole(s)
	return ok
}

// HasRequired reports whether an assigned role satisfies a required one.
func HasRequired(assigned, required Role) bool {
	return assigned.Rank() >= required.Rank()
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("rbac: invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, ok := ParseRole(strings.TrimSpace(string(text)))
	if !ok {
		return fmt.Errorf("rbac: unrecognized role %q", string(text))
	}
	*r = role
	return nil
}
