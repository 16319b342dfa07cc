package mfa

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/trust-core/internal/config"
	"github.com/spec-kit/trust-core/internal/crypto"
	"github.com/spec-kit/trust-core/internal/domain"
	"github.com/spec-kit/trust-core/internal/mfa/totp"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	cryptoSvc, err := crypto.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	store := NewMemoryStore()
	svc := NewService(config.MFAConfig{
		Issuer:          "DriveOwn Marketplace",
		SkewSteps:       1,
		BackupCodeCount: 10,
	}, store, cryptoSvc, nil, zap.NewNop())
	return svc, store
}

func currentCode(t *testing.T, setup *Setup, at time.Time) string {
	t.Helper()
	secret, err := totp.DecodeSecret(setup.Secret)
	require.NoError(t, err)
	return totp.Code(secret, at)
}

func TestGenerateSecretCreatesPendingEnrollment(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	setup, err := svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, setup.Secret)
	assert.True(t, strings.HasPrefix(setup.OTPAuthURL, "otpauth://totp/"))
	assert.Contains(t, setup.OTPAuthURL, "buyer@example.com")
	assert.Len(t, setup.BackupCodes, 10)

	enrollment, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, enrollment)
	assert.Equal(t, domain.MFAStatusPending, enrollment.Status)
	// Secret is stored encrypted, codes hashed.
	assert.NotContains(t, enrollment.SecretEncrypted, setup.Secret)
	assert.NotContains(t, enrollment.BackupCodes, setup.BackupCodes[0])
}

func TestGenerateSecretOverwritesPendingEnrollment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)
	second, err := svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	// Codes from the replaced enrollment no longer verify.
	ok, err := svc.VerifyToken(ctx, "user-1", currentCode(t, first, time.Now()))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.VerifyToken(ctx, "user-1", currentCode(t, second, time.Now()))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyTokenTOTPWindow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	setup, err := svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)

	now := time.Now()

	// One step of drift is tolerated.
	ok, err := svc.VerifyToken(ctx, "user-1", currentCode(t, setup, now.Add(-30*time.Second)))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyToken(ctx, "user-1", currentCode(t, setup, now))
	require.NoError(t, err)
	assert.True(t, ok)

	// Far outside the window.
	ok, err = svc.VerifyToken(ctx, "user-1", currentCode(t, setup, now.Add(-10*time.Minute)))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyTokenRejectsReplayedCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	setup, err := svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)

	now := time.Now()
	code := currentCode(t, setup, now)

	ok, err := svc.VerifyToken(ctx, "user-1", code)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.VerifyToken(ctx, "user-1", code)
	require.NoError(t, err)
	assert.False(t, ok, "an accepted code must not verify a second time")

	// An earlier step never verifies after a later one was accepted.
	ok, err = svc.VerifyToken(ctx, "user-1", currentCode(t, setup, now.Add(-30*time.Second)))
	require.NoError(t, err)
	assert.False(t, ok)

	// The next step is fresh.
	ok, err = svc.VerifyToken(ctx, "user-1", currentCode(t, setup, now.Add(30*time.Second)))
	require.NoError(t, err)
	assert.True(t, ok)

	// Re-enrollment resets the replay history with the secret.
	newSetup, err := svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)
	ok, err = svc.VerifyToken(ctx, "user-1", currentCode(t, newSetup, now))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBackupCodeIsSingleUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	setup, err := svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)
	code := setup.BackupCodes[3]

	ok, err := svc.VerifyToken(ctx, "user-1", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyToken(ctx, "user-1", code)
	require.NoError(t, err)
	assert.False(t, ok, "a backup code must be consumed on first use")
}

func TestVerifyTokenUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	ok, err := svc.VerifyToken(context.Background(), "ghost", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnableRequiresPendingEnrollment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Enable(ctx, "user-1"), ErrNotEnrolled)

	setup, err := svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)

	ok, err := svc.VerifyToken(ctx, "user-1", currentCode(t, setup, time.Now()))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.Enable(ctx, "user-1"))

	status, err := svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MFAStatusEnabled, status)

	// Enabling twice has no pending state to promote.
	require.ErrorIs(t, svc.Enable(ctx, "user-1"), ErrNoPendingEnrollment)
}

func TestGenerateSecretRejectedOnceEnabled(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	setup, err := svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)
	ok, err := svc.VerifyToken(ctx, "user-1", currentCode(t, setup, time.Now()))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, svc.Enable(ctx, "user-1"))

	_, err = svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.ErrorIs(t, err, ErrAlreadyEnabled)
}

func TestDisableResetsState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.Disable(ctx, "user-1"))

	status, err := svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MFAStatusNotEnrolled, status)
}

func TestVerifyTokenTamperedSecretFails(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.GenerateSecret(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)

	enrollment, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	enrollment.SecretEncrypted = "aa:bb:cc"
	require.NoError(t, store.Upsert(ctx, enrollment))

	_, err = svc.VerifyToken(ctx, "user-1", "123456")
	require.Error(t, err, "undecryptable stored secret must surface, not read as wrong code")
}
