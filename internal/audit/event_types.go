package audit

import "time"

// EventType enumerates supported audit event identifiers.
type EventType string

const (
	EventAuthRejected      EventType = "auth_rejected"
	EventPermissionDenied  EventType = "permission_denied"
	EventPermissionGranted EventType = "permission_granted"
	EventPermissionRevoked EventType = "permission_revoked"
	EventRateLimited       EventType = "rate_limited"
	EventTokenRefreshed    EventType = "token_refreshed"
	EventMFAEnrolled       EventType = "mfa_enrolled"
	EventMFAEnabled        EventType = "mfa_enabled"
	EventMFARejected       EventType = "mfa_rejected"
	EventMFABackupUsed     EventType = "mfa_backup_code_used"
)

// Event represents a security-relevant decision taken by the core.
// The payload never contains raw credentials or decrypted PII.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}
