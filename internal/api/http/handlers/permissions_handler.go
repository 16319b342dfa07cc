package handlers

import (
	"errors"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/trust-core/internal/api/dto"
	"github.com/spec-kit/trust-core/internal/audit"
	"github.com/spec-kit/trust-core/internal/auth"
	"github.com/spec-kit/trust-core/internal/domain"
	"github.com/spec-kit/trust-core/internal/rbac"
	apperrors "github.com/spec-kit/trust-core/pkg/util/errorutil"
)

// PermissionsHandler exposes admin permission management endpoints.
// Routes are mounted behind the admin guard; the handler assumes an
// authenticated admin principal.
type PermissionsHandler struct {
	resolver *rbac.Resolver
	auditor  audit.Dispatcher
}

// NewPermissionsHandler constructs handler.
func NewPermissionsHandler(resolver *rbac.Resolver, auditor audit.Dispatcher) *PermissionsHandler {
	return &PermissionsHandler{resolver: resolver, auditor: auditor}
}

// Grant POST /admin/permissions/grant.
func (h *PermissionsHandler) Grant(c *fiber.Ctx) error {
	userID, perm, err := h.parseOverride(c)
	if err != nil {
		return err
	}
	if err := h.resolver.Grant(c.UserContext(), userID, perm); err != nil {
		return err
	}
	h.recordChange(c, audit.EventPermissionGranted, userID, perm)
	return h.respondEffective(c, userID)
}

// Revoke POST /admin/permissions/revoke.
func (h *PermissionsHandler) Revoke(c *fiber.Ctx) error {
	userID, perm, err := h.parseOverride(c)
	if err != nil {
		return err
	}
	if err := h.resolver.Revoke(c.UserContext(), userID, perm); err != nil {
		return err
	}
	h.recordChange(c, audit.EventPermissionRevoked, userID, perm)
	return h.respondEffective(c, userID)
}

// Reset DELETE /admin/permissions/:userId/:permission. Clears an
// override so the role default applies again.
func (h *PermissionsHandler) Reset(c *fiber.Ctx) error {
	userID := c.Params("userId")
	perm := domain.Permission(c.Params("permission"))
	if !perm.Valid() {
		return apperrors.NewValidationError("unknown permission", nil)
	}
	if err := h.resolver.ClearOverride(c.UserContext(), userID, perm); err != nil {
		return err
	}
	return h.respondEffective(c, userID)
}

// List GET /admin/permissions/:userId.
func (h *PermissionsHandler) List(c *fiber.Ctx) error {
	return h.respondEffective(c, c.Params("userId"))
}

func (h *PermissionsHandler) parseOverride(c *fiber.Ctx) (string, domain.Permission, error) {
	var req dto.PermissionOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return "", "", apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return "", "", apperrors.NewValidationError("user_id required", nil)
	}
	perm := domain.Permission(req.Permission)
	if !perm.Valid() {
		return "", "", apperrors.NewValidationError("unknown permission", nil)
	}
	return req.UserID, perm, nil
}

func (h *PermissionsHandler) respondEffective(c *fiber.Ctx, userID string) error {
	perms, err := h.resolver.EffectivePermissions(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			return apperrors.NewNotFound("user", nil)
		}
		return err
	}
	names := make([]string, 0, len(perms))
	for perm := range perms {
		names = append(names, string(perm))
	}
	sort.Strings(names)
	return c.JSON(fiber.Map{"data": dto.EffectivePermissionsResponse{
		UserID:      userID,
		Permissions: names,
	}})
}

func (h *PermissionsHandler) recordChange(c *fiber.Ctx, eventType audit.EventType, userID string, perm domain.Permission) {
	if h.auditor == nil {
		return
	}
	actorID := ""
	if principal, ok := auth.PrincipalFromContext(c); ok {
		actorID = principal.UserID
	}
	_ = h.auditor.Publish(c.UserContext(), audit.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Details: map[string]any{
			"permission": string(perm),
			"actor_id":   actorID,
		},
	})
}
