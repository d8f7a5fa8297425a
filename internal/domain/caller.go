package domain

// Role is the role tag the identity subsystem attaches to a caller.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleDriver Role = "DRIVER"
	RoleAdmin  Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleDriver || r == RoleAdmin
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID                string
	Role              Role
	ActiveVehicleType VehicleType // may be empty
}

// IsAdmin reports whether the caller has admin privileges.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Owned is implemented by every entity that has owning identities.
type Owned interface {
	OwnerIdentities() []string
}

// CanAccess reports whether the caller owns the entity or is an admin.
func CanAccess(c Caller, o Owned) bool {
	if c.IsAdmin() {
		return true
	}
	for _, id := range o.OwnerIdentities() {
		if id != "" && id == c.ID {
			return true
		}
	}
	return false
}
