package identity

import (
	"strings"

	dErrors "boxoffice/pkg/domain-errors"
)

// Role is a coarse capability held in the directory. Holding a role is
// necessary but never sufficient for access to a specific resource.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleOrganizer Role = "ORGANIZER"
	RoleStaff     Role = "STAFF"
	RoleAttendee  Role = "ATTENDEE"
)

// DefaultRole is granted to registrants without an invite.
const DefaultRole = RoleAttendee

var rank = map[Role]int{
	RoleAttendee:  1,
	RoleStaff:     2,
	RoleOrganizer: 3,
	RoleAdmin:     4,
}

// ParseRole accepts any case and an optional ROLE_ prefix.
func ParseRole(s string) (Role, error) {
	r := Role(normalizeRoleName(s))
	if _, ok := rank[r]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	_, ok := rank[r]
	return ok
}

// IsEventScoped reports whether grants of r are bound to one event.
func (r Role) IsEventScoped() bool {
	return r == RoleStaff
}

// IsHighestPrivilege reports whether r is the global administrator role.
func (r Role) IsHighestPrivilege() bool {
	return r == RoleAdmin
}

// Outranks reports whether r carries strictly more privilege than other.
func (r Role) Outranks(other Role) bool {
	return rank[r] > rank[other]
}

// KnownRoles returns every role this service manages, lowest first.
func KnownRoles() []Role {
	return []Role{RoleAttendee, RoleStaff, RoleOrganizer, RoleAdmin}
}

func normalizeRoleName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "ROLE_")
}
