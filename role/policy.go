package role

// The closed role set, ordered. Levels are a total order; comparison is the
// entire authorization model.
const (
	Owner    = "owner"
	Admin    = "admin"
	Teacher  = "teacher"
	ReadOnly = "readonly"
)

// levels maps each known role to its rank. Unknown role strings rank 0 and
// are therefore never sufficient — unless the required role is itself
// unrecognized, in which case 0 >= 0 holds by design.
var levels = map[string]int{
	ReadOnly: 1,
	Teacher:  2,
	Admin:    3,
	Owner:    4,
}

// Level returns the rank of a role, 0 for unknown.
func Level(role string) int {
	return levels[role]
}

// Known reports whether the role is part of the closed set.
func Known(role string) bool {
	_, ok := levels[role]
	return ok
}

// HasPermission reports whether actual ranks at least as high as required.
func HasPermission(actual, required string) bool {
	return Level(actual) >= Level(required)
}

// Named predicates are fixed bindings over HasPermission: plain boolean
// functions with no hidden state and no I/O.

// CanManageOrganization reports owner-level access: billing, tenant
// settings, organization deletion.
func CanManageOrganization(role string) bool {
	return HasPermission(role, Owner)
}

// CanManageUsers reports admin-level access: inviting, removing, and
// re-roling accounts.
func CanManageUsers(role string) bool {
	return HasPermission(role, Admin)
}

// CanManageClasses reports teacher-level access: class rosters, book
// assignments, reading session entry.
func CanManageClasses(role string) bool {
	return HasPermission(role, Teacher)
}

// CanViewReports reports the baseline read access every known role has.
func CanViewReports(role string) bool {
	return HasPermission(role, ReadOnly)
}
