package dto

// PermissionOverrideRequest targets one user/permission pair for a
// grant or a revocation.
type PermissionOverrideRequest struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
}

// EffectivePermissionsResponse lists a user's resolved permission set.
type EffectivePermissionsResponse struct {
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}
