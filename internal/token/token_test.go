package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/trust-core/internal/config"
	"github.com/spec-kit/trust-core/internal/domain"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(config.TokenConfig{
		AccessSecret:     "access-secret-for-tests-only",
		RefreshSecret:    "refresh-secret-for-tests-only",
		AccessTTLMinutes: 15,
		RefreshTTLDays:   7,
		Issuer:           "trust-core-test",
	}, zap.NewNop())
}

func testPrincipal() *domain.Principal {
	return &domain.Principal{
		UserID:     "user-123",
		Email:      "buyer@example.com",
		Role:       domain.RoleCustomer,
		RetailerID: "",
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc := newTestService(t)

	for _, tokenType := range []domain.TokenType{domain.TokenTypeAccess, domain.TokenTypeRefresh} {
		signed, expiresAt, err := svc.Issue(testPrincipal(), tokenType)
		require.NoError(t, err)
		assert.True(t, expiresAt.After(time.Now()))

		claims := svc.Verify(signed, tokenType)
		require.NotNil(t, claims)
		assert.Equal(t, "user-123", claims.Subject)
		assert.Equal(t, "buyer@example.com", claims.Email)
		assert.Equal(t, domain.RoleCustomer, claims.Role)
		assert.Equal(t, tokenType, claims.TokenType)

		p := claims.Principal()
		assert.Equal(t, testPrincipal(), p)
	}
}

func TestVerifyRejectsTypeConfusion(t *testing.T) {
	svc := newTestService(t)

	access, _, err := svc.Issue(testPrincipal(), domain.TokenTypeAccess)
	require.NoError(t, err)
	refresh, _, err := svc.Issue(testPrincipal(), domain.TokenTypeRefresh)
	require.NoError(t, err)

	assert.Nil(t, svc.Verify(access, domain.TokenTypeRefresh))
	assert.Nil(t, svc.Verify(refresh, domain.TokenTypeAccess))
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	svc := newTestService(t)

	for _, raw := range []string{"", "not-a-token", "a.b.c", "a.b"} {
		assert.Nil(t, svc.Verify(raw, domain.TokenTypeAccess))
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	svc := newTestService(t)
	other := NewService(config.TokenConfig{
		AccessSecret:     "a-completely-different-access-secret",
		RefreshSecret:    "a-completely-different-refresh-secret",
		AccessTTLMinutes: 15,
		RefreshTTLDays:   7,
		Issuer:           "trust-core-test",
	}, zap.NewNop())

	signed, _, err := other.Issue(testPrincipal(), domain.TokenTypeAccess)
	require.NoError(t, err)

	assert.Nil(t, svc.Verify(signed, domain.TokenTypeAccess))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := NewService(config.TokenConfig{
		AccessSecret:     "access-secret-for-tests-only",
		RefreshSecret:    "refresh-secret-for-tests-only",
		AccessTTLMinutes: -1,
		RefreshTTLDays:   7,
		Issuer:           "trust-core-test",
	}, zap.NewNop())

	signed, _, err := svc.Issue(testPrincipal(), domain.TokenTypeAccess)
	require.NoError(t, err)

	assert.Nil(t, svc.Verify(signed, domain.TokenTypeAccess))
}

func TestIssueRequiresPrincipal(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Issue(nil, domain.TokenTypeAccess)
	require.Error(t, err)

	_, _, err = svc.Issue(&domain.Principal{}, domain.TokenTypeAccess)
	require.Error(t, err)

	_, _, err = svc.Issue(testPrincipal(), domain.TokenType("session"))
	require.Error(t, err)
}

func TestIssueIsDeterministicForAFixedInstant(t *testing.T) {
	svc := newTestService(t)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	first, _, err := svc.Issue(testPrincipal(), domain.TokenTypeAccess)
	require.NoError(t, err)
	second, _, err := svc.Issue(testPrincipal(), domain.TokenTypeAccess)
	require.NoError(t, err)

	assert.Equal(t, first, second, "payload must be a pure function of principal and issuance time")
}
