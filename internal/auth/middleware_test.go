package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/trust-core/internal/config"
	"github.com/spec-kit/trust-core/internal/domain"
	"github.com/spec-kit/trust-core/internal/token"
	apperrors "github.com/spec-kit/trust-core/pkg/util/errorutil"
)

func newTestTokenService() *token.Service {
	return token.NewService(config.TokenConfig{
		AccessSecret:     "access-secret-for-tests-0123456789",
		RefreshSecret:    "refresh-secret-for-tests-0123456789",
		AccessTTLMinutes: 15,
		RefreshTTLDays:   7,
		Issuer:           "trust-core-test",
	}, zap.NewNop())
}

func newProtectedApp(middleware *Middleware) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": domainErr.Code})
		},
	})
	app.Get("/whoami", middleware.Handle, func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.JSON(fiber.Map{"user_id": principal.UserID, "role": string(principal.Role)})
	})
	return app
}

func TestBearerTokenAccepted(t *testing.T) {
	tokens := newTestTokenService()
	app := newProtectedApp(NewMiddleware(zap.NewNop(), NewBearerTokenStrategy(tokens)))

	accessToken, _, err := tokens.Issue(&domain.Principal{
		UserID: "user-1",
		Email:  "buyer@example.com",
		Role:   domain.RoleCustomer,
	}, domain.TokenTypeAccess)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingCredentialRejected(t *testing.T) {
	tokens := newTestTokenService()
	app := newProtectedApp(NewMiddleware(zap.NewNop(), NewBearerTokenStrategy(tokens)))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshTokenRejectedOnProtectedRoute(t *testing.T) {
	tokens := newTestTokenService()
	app := newProtectedApp(NewMiddleware(zap.NewNop(), NewBearerTokenStrategy(tokens)))

	refreshToken, _, err := tokens.Issue(&domain.Principal{
		UserID: "user-1",
		Role:   domain.RoleCustomer,
	}, domain.TokenTypeRefresh)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMalformedAuthorizationHeaderRejected(t *testing.T) {
	tokens := newTestTokenService()
	app := newProtectedApp(NewMiddleware(zap.NewNop(), NewBearerTokenStrategy(tokens)))

	for _, header := range []string{"Bearer", "Basic abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", header)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "header %q", header)
	}
}

func TestTrustedHeadersAcceptedWhenComposed(t *testing.T) {
	tokens := newTestTokenService()
	app := newProtectedApp(NewMiddleware(zap.NewNop(),
		NewBearerTokenStrategy(tokens),
		NewTrustedHeaderStrategy(),
	))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Auth-User-Id", "user-7")
	req.Header.Set("X-Auth-Role", "agent")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTrustedHeadersIgnoredWhenNotComposed(t *testing.T) {
	tokens := newTestTokenService()
	app := newProtectedApp(NewMiddleware(zap.NewNop(), NewBearerTokenStrategy(tokens)))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Auth-User-Id", "user-7")
	req.Header.Set("X-Auth-Role", "admin")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTrustedHeaderUnknownRoleRejected(t *testing.T) {
	app := newProtectedApp(NewMiddleware(zap.NewNop(), NewTrustedHeaderStrategy()))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Auth-User-Id", "user-7")
	req.Header.Set("X-Auth-Role", "superuser")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
