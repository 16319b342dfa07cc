package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trust-core/internal/api/dto"
	"github.com/spec-kit/trust-core/internal/auth"
	"github.com/spec-kit/trust-core/internal/domain"
	"github.com/spec-kit/trust-core/internal/mfa"
	"github.com/spec-kit/trust-core/internal/observability"
	apperrors "github.com/spec-kit/trust-core/pkg/util/errorutil"
)

// MFAHandler manages the caller's own TOTP enrollment.
type MFAHandler struct {
	service *mfa.Service
	metrics *observability.Metrics
}

// NewMFAHandler constructs handler.
func NewMFAHandler(service *mfa.Service, metrics *observability.Metrics) *MFAHandler {
	return &MFAHandler{service: service, metrics: metrics}
}

// Setup POST /mfa/setup. Starts or restarts enrollment and returns the
// secret, provisioning URL and backup codes exactly once.
func (h *MFAHandler) Setup(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if principal.Email == "" {
		return apperrors.NewValidationError("principal has no email for the provisioning label", nil)
	}

	setup, err := h.service.GenerateSecret(c.UserContext(), principal.UserID, principal.Email)
	if err != nil {
		return mapMFAError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.MFASetupResponse{
		Secret:      setup.Secret,
		OTPAuthURL:  setup.OTPAuthURL,
		BackupCodes: setup.BackupCodes,
		Status:      string(domain.MFAStatusPending),
	}})
}

// Verify POST /mfa/verify. Checks a TOTP or backup code. An incorrect
// code is a 200 with valid=false, not an error status.
func (h *MFAHandler) Verify(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.MFAVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Code) == "" {
		return apperrors.NewValidationError("code required", nil)
	}

	valid, err := h.service.VerifyToken(c.UserContext(), principal.UserID, strings.TrimSpace(req.Code))
	if err != nil {
		return mapMFAError(err)
	}
	h.metrics.RecordMFAVerification(valid)
	return c.JSON(fiber.Map{"data": dto.MFAVerifyResponse{Valid: valid}})
}

// Enable POST /mfa/enable. Promotes a pending enrollment after the
// caller proved possession of the secret with a valid code.
func (h *MFAHandler) Enable(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.MFAVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Code) == "" {
		return apperrors.NewValidationError("code required", nil)
	}

	valid, err := h.service.VerifyToken(c.UserContext(), principal.UserID, strings.TrimSpace(req.Code))
	if err != nil {
		return mapMFAError(err)
	}
	h.metrics.RecordMFAVerification(valid)
	if !valid {
		return apperrors.NewValidationError("invalid code", nil)
	}

	if err := h.service.Enable(c.UserContext(), principal.UserID); err != nil {
		return mapMFAError(err)
	}
	return c.JSON(fiber.Map{"data": dto.MFAStatusResponse{Status: domain.MFAStatusEnabled}})
}

// Status GET /mfa/status.
func (h *MFAHandler) Status(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	status, err := h.service.Status(c.UserContext(), principal.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MFAStatusResponse{Status: status}})
}

// Disable POST /mfa/disable. Removes the caller's enrollment.
func (h *MFAHandler) Disable(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.Disable(c.UserContext(), principal.UserID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MFAStatusResponse{Status: domain.MFAStatusNotEnrolled}})
}

func mapMFAError(err error) error {
	switch {
	case errors.Is(err, mfa.ErrNotEnrolled):
		return apperrors.NewNotFound("mfa enrollment", nil)
	case errors.Is(err, mfa.ErrNoPendingEnrollment):
		return apperrors.NewConflict("no pending enrollment to enable", nil)
	case errors.Is(err, mfa.ErrAlreadyEnabled):
		return apperrors.NewConflict("mfa already enabled", nil)
	default:
		return err
	}
}
