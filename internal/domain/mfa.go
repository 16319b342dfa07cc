package domain

import "time"

// MFAStatus tracks the per-user enrollment state machine.
type MFAStatus string

const (
	MFAStatusNotEnrolled MFAStatus = "not_enrolled"
	MFAStatusPending     MFAStatus = "pending_verification"
	MFAStatusEnabled     MFAStatus = "enabled"
)

// MFAEnrollment is the persisted multi-factor record for a user. The
// TOTP secret is stored as an encrypted blob and backup codes are
// stored as one-way hashes, each usable exactly once.
type MFAEnrollment struct {
	UserID          string
	SecretEncrypted string
	BackupCodes     []string
	Status          MFAStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Enabled reports whether enrollment completed verification.
func (e *MFAEnrollment) Enabled() bool {
	return e != nil && e.Status == MFAStatusEnabled
}
