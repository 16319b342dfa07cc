package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/trust-core/internal/config"
)

var loginPolicy = config.RatePolicy{MaxRequests: 3, Window: time.Minute}

func TestCheckSequenceWithinWindow(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	for _, wantRemaining := range []int{2, 1, 0} {
		res, err := limiter.Check(ctx, "10.0.0.1", loginPolicy)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, wantRemaining, res.Remaining)
	}

	res, err := limiter.Check(ctx, "10.0.0.1", loginPolicy)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.Greater(t, res.RetryAfterSeconds(), 0)
}

func TestIdentifierIsolation(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := limiter.Check(ctx, "noisy", loginPolicy)
		require.NoError(t, err)
	}

	res, err := limiter.Check(ctx, "quiet", loginPolicy)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestWindowExpiryResetsIdentifier(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	limiter := NewLimiter(store, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := limiter.Check(ctx, "client", loginPolicy)
		require.NoError(t, err)
	}
	res, err := limiter.Check(ctx, "client", loginPolicy)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	current = current.Add(loginPolicy.Window + time.Second)

	res, err = limiter.Check(ctx, "client", loginPolicy)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestCleanupPurgesOnlyExpiredIdentifiers(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	ctx := context.Background()
	_, _, err := store.Record(ctx, "old", time.Minute)
	require.NoError(t, err)

	current = current.Add(30 * time.Second)
	_, _, err = store.Record(ctx, "fresh", time.Minute)
	require.NoError(t, err)

	current = current.Add(45 * time.Second)

	purged, err := store.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	store.mu.RLock()
	_, oldExists := store.entries["old"]
	_, freshExists := store.entries["fresh"]
	store.mu.RUnlock()
	assert.False(t, oldExists)
	assert.True(t, freshExists)
}

func TestConcurrentChecksLoseNoUpdates(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), zap.NewNop())
	policy := config.RatePolicy{MaxRequests: 1000, Window: time.Minute}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := limiter.Check(ctx, "shared", policy)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	res, err := limiter.Check(ctx, "shared", policy)
	require.NoError(t, err)
	assert.Equal(t, policy.MaxRequests-101, res.Remaining)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, Result{}.RetryAfterSeconds())
	assert.Equal(t, 1, Result{RetryAfter: 200 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 30, Result{RetryAfter: 30 * time.Second}.RetryAfterSeconds())
	assert.Equal(t, 31, Result{RetryAfter: 30*time.Second + time.Millisecond}.RetryAfterSeconds())
}
