package dto

import "github.com/spec-kit/trust-core/internal/domain"

// MFASetupResponse is returned exactly once, at enrollment time. The
// secret and backup codes are not retrievable afterwards.
type MFASetupResponse struct {
	Secret      string   `json:"secret"`
	OTPAuthURL  string   `json:"otpauth_url"`
	BackupCodes []string `json:"backup_codes"`
	Status      string   `json:"status"`
}

// MFAVerifyRequest carries a TOTP or backup code.
type MFAVerifyRequest struct {
	Code string `json:"code"`
}

// MFAVerifyResponse reports the verification outcome.
type MFAVerifyResponse struct {
	Valid bool `json:"valid"`
}

// MFAStatusResponse reports the caller's enrollment state.
type MFAStatusResponse struct {
	Status domain.MFAStatus `json:"status"`
}
