package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/trust-core/internal/domain"
	apperrors "github.com/spec-kit/trust-core/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Middleware authenticates requests using an explicit, ordered chain
// of extraction strategies.
type Middleware struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewMiddleware composes the given strategies. The caller decides the
// order; the first strategy that finds a credential settles the
// outcome, valid or not.
func NewMiddleware(logger *zap.Logger, strategies ...Strategy) *Middleware {
	return &Middleware{strategies: strategies, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	for _, strategy := range m.strategies {
		principal, err := strategy.Extract(c)
		if errors.Is(err, ErrNoCredential) {
			continue
		}
		if err != nil {
			if m.logger != nil {
				m.logger.Debug("credential rejected",
					zap.String("strategy", strategy.Name()),
					zap.String("path", c.Path()),
				)
			}
			return apperrors.NewUnauthorized("invalid credentials")
		}

		c.Locals(principalKey, principal)
		return c.Next()
	}
	return apperrors.NewUnauthorized("authentication required")
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok
}
