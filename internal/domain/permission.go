package domain

import "time"

// Permission names an individual capability checked by the resolver.
type Permission string

const (
	PermViewVehicles       Permission = "view_vehicles"
	PermManageVehicles     Permission = "manage_vehicles"
	PermViewApplications   Permission = "view_applications"
	PermManageApplications Permission = "manage_applications"
	PermViewContracts      Permission = "view_contracts"
	PermManageContracts    Permission = "manage_contracts"
	PermViewUsers          Permission = "view_users"
	PermManageUsers        Permission = "manage_users"
	PermManagePermissions  Permission = "manage_permissions"
	PermViewReports        Permission = "view_reports"
)

// Valid reports whether the permission is one of the known values.
func (p Permission) Valid() bool {
	switch p {
	case PermViewVehicles, PermManageVehicles,
		PermViewApplications, PermManageApplications,
		PermViewContracts, PermManageContracts,
		PermViewUsers, PermManageUsers,
		PermManagePermissions, PermViewReports:
		return true
	}
	return false
}

// OverrideEffect is the sign of a per-user permission override.
type OverrideEffect string

const (
	OverrideGrant  OverrideEffect = "grant"
	OverrideRevoke OverrideEffect = "revoke"
)

// PermissionOverride is an explicit per-user entry layered on top of
// the role defaults. An override always wins over the role default for
// the same permission.
type PermissionOverride struct {
	UserID     string
	Permission Permission
	Effect     OverrideEffect
	CreatedAt  time.Time
}
