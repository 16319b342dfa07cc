package rate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/trust-core/internal/config"
)

// Result is the outcome of a limiter check. A denial is an ordinary
// return value, never an error.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for the
// Retry-After response header.
func (r Result) RetryAfterSeconds() int {
	if r.RetryAfter <= 0 {
		return 0
	}
	secs := int(r.RetryAfter / time.Second)
	if r.RetryAfter%time.Second > 0 {
		secs++
	}
	return secs
}

// CounterStore records request hits per identifier. Implementations
// must isolate identifiers from each other and account every
// concurrent request (no lost updates).
type CounterStore interface {
	// Record adds the current request to the identifier's window and
	// returns the in-window count together with the time remaining
	// until the oldest recorded request ages out.
	Record(ctx context.Context, identifier string, window time.Duration) (count int, ttl time.Duration, err error)

	// Cleanup removes identifiers whose entire history has aged out
	// and returns how many were purged. Identifiers with live history
	// are never evicted.
	Cleanup(ctx context.Context) (int, error)
}

// Limiter applies named policies over an injected counter store. The
// store decides lifetime and sharing: in-process for single-instance
// deployments, Redis-backed when counters must be shared.
type Limiter struct {
	store  CounterStore
	logger *zap.Logger
}

// NewLimiter builds a limiter over the given store.
func NewLimiter(store CounterStore, logger *zap.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

// Check records the request and decides whether it is within policy.
// Store failures propagate as errors; the HTTP boundary maps them to a
// generic 503.
func (l *Limiter) Check(ctx context.Context, identifier string, policy config.RatePolicy) (Result, error) {
	count, ttl, err := l.store.Record(ctx, identifier, policy.Window)
	if err != nil {
		return Result{}, err
	}

	remaining := policy.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:   count <= policy.MaxRequests,
		Remaining: remaining,
	}
	if !res.Allowed {
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = policy.Window
		}
		if l.logger != nil {
			l.logger.Debug("rate limit exceeded",
				zap.String("identifier", identifier),
				zap.Int("count", count),
				zap.Duration("retry_after", res.RetryAfter),
			)
		}
	}
	return res, nil
}

// Cleanup delegates to the store's maintenance pass.
func (l *Limiter) Cleanup(ctx context.Context) (int, error) {
	return l.store.Cleanup(ctx)
}

// StartCleanupLoop runs Cleanup on the given interval until ctx is
// cancelled. Intended to be launched once from main.
func (l *Limiter) StartCleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := l.Cleanup(ctx)
			if err != nil {
				if l.logger != nil {
					l.logger.Warn("rate limiter cleanup failed", zap.Error(err))
				}
				continue
			}
			if purged > 0 && l.logger != nil {
				l.logger.Debug("rate limiter cleanup", zap.Int("purged", purged))
			}
		}
	}
}
