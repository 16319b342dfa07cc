package domain

// Role enumerates the marketplace actor roles.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleRetailer Role = "retailer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleRetailer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// Principal represents the authenticated caller for a single request.
// It is derived from a verified token or a trusted gateway header and
// is never persisted.
type Principal struct {
	UserID     string
	Email      string
	Role       Role
	RetailerID string
}

// IsAdmin reports whether the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Owns reports whether the principal is the owner of the given resource.
func (p *Principal) Owns(ownerID string) bool {
	return p != nil && ownerID != "" && p.UserID == ownerID
}
