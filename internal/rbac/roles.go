package rbac

import "github.com/spec-kit/trust-core/internal/domain"

// roleDefaults is the static role → permissions table. Per-user
// overrides are layered on top by the resolver; an explicit override
// always wins over an entry here.
var roleDefaults = map[domain.Role][]domain.Permission{
	domain.RoleCustomer: {
		domain.PermViewVehicles,
		domain.PermViewApplications,
		domain.PermViewContracts,
	},
	domain.RoleRetailer: {
		domain.PermViewVehicles,
		domain.PermManageVehicles,
		domain.PermViewApplications,
		domain.PermManageApplications,
		domain.PermViewContracts,
		domain.PermViewReports,
	},
	domain.RoleAgent: {
		domain.PermViewVehicles,
		domain.PermViewApplications,
		domain.PermManageApplications,
		domain.PermViewContracts,
		domain.PermManageContracts,
		domain.PermViewUsers,
	},
	domain.RoleAdmin: {
		domain.PermViewVehicles,
		domain.PermManageVehicles,
		domain.PermViewApplications,
		domain.PermManageApplications,
		domain.PermViewContracts,
		domain.PermManageContracts,
		domain.PermViewUsers,
		domain.PermManageUsers,
		domain.PermManagePermissions,
		domain.PermViewReports,
	},
}

// DefaultPermissions returns a copy of the role's default set.
func DefaultPermissions(role domain.Role) []domain.Permission {
	defaults := roleDefaults[role]
	out := make([]domain.Permission, len(defaults))
	copy(out, defaults)
	return out
}
