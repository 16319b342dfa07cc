package http

import (
	"context"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/trust-core/internal/audit"
	"github.com/spec-kit/trust-core/internal/auth"
	"github.com/spec-kit/trust-core/internal/config"
	"github.com/spec-kit/trust-core/internal/observability"
	"github.com/spec-kit/trust-core/internal/rate"
	apperrors "github.com/spec-kit/trust-core/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(observability.RequestLogger(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				metrics.RecordError(domainErr.Code)
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

// RateLimitMiddleware applies one named policy to the route it guards.
// The identifier is the authenticated user when one is present, the
// client IP otherwise, so pre-auth endpoints are throttled per source.
// A store failure does not take the endpoint down with it; the request
// passes and the failure is logged.
func RateLimitMiddleware(limiter *rate.Limiter, policyName string, policy config.RatePolicy, metrics *observability.Metrics, auditor audit.Dispatcher, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := policyName + ":" + clientIdentifier(c)

		res, err := limiter.Check(c.UserContext(), identifier, policy)
		if err != nil {
			logger.Warn("rate limiter unavailable",
				zap.String("policy", policyName),
				zap.Error(err),
			)
			return c.Next()
		}

		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if res.Allowed {
			return c.Next()
		}

		retryAfter := res.RetryAfterSeconds()
		c.Set("Retry-After", strconv.Itoa(retryAfter))
		metrics.RecordRateLimited(policyName)
		if auditor != nil {
			_ = auditor.Publish(c.UserContext(), audit.Event{
				ID:        uuid.NewString(),
				Type:      audit.EventRateLimited,
				Timestamp: time.Now().UTC(),
				Details: map[string]any{
					"policy": policyName,
					"path":   c.Path(),
				},
			})
		}
		return apperrors.NewTooManyRequests(retryAfter)
	}
}

func clientIdentifier(c *fiber.Ctx) string {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return "user:" + principal.UserID
	}
	return "ip:" + c.IP()
}
