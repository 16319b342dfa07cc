package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/trust-core/internal/api/dto"
	"github.com/spec-kit/trust-core/internal/audit"
	"github.com/spec-kit/trust-core/internal/domain"
	"github.com/spec-kit/trust-core/internal/token"
	apperrors "github.com/spec-kit/trust-core/pkg/util/errorutil"
)

// AuthHandler exposes token lifecycle endpoints.
type AuthHandler struct {
	tokens  *token.Service
	auditor audit.Dispatcher
}

// NewAuthHandler constructs handler.
func NewAuthHandler(tokens *token.Service, auditor audit.Dispatcher) *AuthHandler {
	return &AuthHandler{tokens: tokens, auditor: auditor}
}

// Refresh POST /auth/refresh. Exchanges a valid refresh token for a
// fresh access/refresh pair. The refresh token rotates on every
// exchange; an access token is never accepted here.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RefreshToken == "" {
		return apperrors.NewValidationError("refresh_token required", nil)
	}

	claims := h.tokens.Verify(req.RefreshToken, domain.TokenTypeRefresh)
	if claims == nil {
		h.recordRejection(c.UserContext())
		return apperrors.NewUnauthorized("invalid refresh token")
	}
	principal := claims.Principal()

	accessToken, accessExp, err := h.tokens.Issue(principal, domain.TokenTypeAccess)
	if err != nil {
		return err
	}
	refreshToken, refreshExp, err := h.tokens.Issue(principal, domain.TokenTypeRefresh)
	if err != nil {
		return err
	}

	if h.auditor != nil {
		_ = h.auditor.Publish(c.UserContext(), audit.Event{
			ID:        uuid.NewString(),
			Type:      audit.EventTokenRefreshed,
			UserID:    principal.UserID,
			Timestamp: time.Now().UTC(),
		})
	}

	return c.JSON(fiber.Map{"data": dto.TokenPairResponse{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}})
}

func (h *AuthHandler) recordRejection(ctx context.Context) {
	if h.auditor == nil {
		return
	}
	_ = h.auditor.Publish(ctx, audit.Event{
		ID:        uuid.NewString(),
		Type:      audit.EventAuthRejected,
		Timestamp: time.Now().UTC(),
		Details:   map[string]any{"reason": "refresh_verification_failed"},
	})
}
