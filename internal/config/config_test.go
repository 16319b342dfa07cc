package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_MASTER_KEY", "a-master-key-that-is-long-enough-ok")
	t.Setenv("TOKEN_ACCESS_SECRET", "access-secret")
	t.Setenv("TOKEN_REFRESH_SECRET", "refresh-secret")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredSecrets(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "trust-core", cfg.App.Name)
	assert.Equal(t, 15*time.Minute, cfg.Token.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.Token.RefreshTTL())
	assert.Equal(t, RatePolicy{MaxRequests: 5, Window: time.Minute}, cfg.Rate.Login)
	assert.Equal(t, RatePolicy{MaxRequests: 3, Window: time.Hour}, cfg.Rate.Registration)
	assert.Equal(t, 1, cfg.MFA.SkewSteps)
	assert.False(t, cfg.Auth.TrustProxyHeaders)
}

func TestLoadRejectsShortMasterKey(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("ENCRYPTION_MASTER_KEY", "too-short")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsSharedTokenSecret(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("TOKEN_REFRESH_SECRET", "access-secret")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsMissingTokenSecrets(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("TOKEN_ACCESS_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestPolicyOverridesFromEnvironment(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("RATE_LOGIN_MAX_REQUESTS", "9")
	t.Setenv("RATE_LOGIN_WINDOW_MS", "1500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, RatePolicy{MaxRequests: 9, Window: 1500 * time.Millisecond}, cfg.Rate.Login)
}
