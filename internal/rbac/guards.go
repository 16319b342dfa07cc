package rbac

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/trust-core/internal/audit"
	"github.com/spec-kit/trust-core/internal/auth"
	"github.com/spec-kit/trust-core/internal/domain"
	apperrors "github.com/spec-kit/trust-core/pkg/util/errorutil"
)

// Guard builds route-level permission checks. A guard is a pure
// decision: it either lets the request proceed or produces a 401/403
// denial; its only side effect is an audit record.
type Guard struct {
	resolver *Resolver
	auditor  audit.Dispatcher
}

// NewGuard constructs a guard factory.
func NewGuard(resolver *Resolver, auditor audit.Dispatcher) *Guard {
	return &Guard{resolver: resolver, auditor: auditor}
}

// RequireAdmin admits only principals with the admin role.
func (g *Guard) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.IsAdmin() {
			g.recordDenial(c, principal, "admin role required")
			return apperrors.NewForbidden("insufficient permissions")
		}
		return c.Next()
	}
}

// RequirePermission admits principals whose effective permission set
// contains perm.
func (g *Guard) RequirePermission(perm domain.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}

		allowed, err := g.resolver.HasPermission(c.UserContext(), principal.UserID, perm)
		if err != nil {
			return err
		}
		if !allowed {
			g.recordDenial(c, principal, string(perm))
			return apperrors.NewForbidden("insufficient permissions")
		}
		return c.Next()
	}
}

// RequireOwnershipOr admits the resource owner directly and everyone
// else through the permission check. ownerID extracts the owner from
// the request, typically a route parameter.
func (g *Guard) RequireOwnershipOr(perm domain.Permission, ownerID func(*fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}

		allowed, err := g.resolver.Allowed(c.UserContext(), principal, perm, ownerID(c))
		if err != nil {
			return err
		}
		if !allowed {
			g.recordDenial(c, principal, string(perm))
			return apperrors.NewForbidden("insufficient permissions")
		}
		return c.Next()
	}
}

func (g *Guard) recordDenial(c *fiber.Ctx, principal *domain.Principal, requirement string) {
	if g.auditor == nil {
		return
	}
	_ = g.auditor.Publish(c.UserContext(), audit.Event{
		ID:        uuid.NewString(),
		Type:      audit.EventPermissionDenied,
		UserID:    principal.UserID,
		Timestamp: time.Now().UTC(),
		Details: map[string]any{
			"requirement": requirement,
			"path":        c.Path(),
			"method":      c.Method(),
		},
	})
}
