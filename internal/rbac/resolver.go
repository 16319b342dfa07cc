package rbac

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/trust-core/internal/domain"
	apperrors "github.com/spec-kit/trust-core/pkg/util/errorutil"
)

// cacheTTL bounds how stale an effective permission set may be when a
// grant or revoke happens on another instance. Local writes invalidate
// immediately.
const cacheTTL = 30 * time.Second

// Resolver computes effective permissions: role defaults plus user
// grants, minus user revocations, with the explicit per-user entry
// winning over the role default.
type Resolver struct {
	store  PermissionStore
	cache  *gocache.Cache
	group  singleflight.Group
	logger *zap.Logger
}

// NewResolver builds a resolver over the given store.
func NewResolver(store PermissionStore, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:  store,
		cache:  gocache.New(cacheTTL, 2*cacheTTL),
		logger: logger,
	}
}

// HasPermission decides allow/deny for one user and permission. An
// unknown user resolves to a plain deny; only dependency failures
// surface as errors, mapped to a 503-class failure.
func (r *Resolver) HasPermission(ctx context.Context, userID string, perm domain.Permission) (bool, error) {
	effective, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return false, apperrors.NewServiceUnavailable(err)
		}
		return false, err
	}
	_, ok := effective[perm]
	return ok, nil
}

// Allowed applies the ownership bypass: the principal may act when it
// owns the resource, or when the permission check passes. Ownership is
// a bypass, not a replacement, for the permission table.
func (r *Resolver) Allowed(ctx context.Context, principal *domain.Principal, perm domain.Permission, ownerID string) (bool, error) {
	if principal == nil {
		return false, nil
	}
	if principal.Owns(ownerID) {
		return true, nil
	}
	return r.HasPermission(ctx, principal.UserID, perm)
}

// EffectivePermissions returns the user's resolved permission set.
// Lookups are cached briefly and concurrent lookups for the same user
// collapse into a single store round trip.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID string) (map[domain.Permission]struct{}, error) {
	if cached, ok := r.cache.Get(userID); ok {
		return cached.(map[domain.Permission]struct{}), nil
	}

	v, err, _ := r.group.Do(userID, func() (any, error) {
		role, err := r.store.GetUserRole(ctx, userID)
		if err != nil {
			return nil, err
		}
		overrides, err := r.store.ListOverrides(ctx, userID)
		if err != nil {
			return nil, err
		}

		effective := make(map[domain.Permission]struct{})
		for _, perm := range roleDefaults[role] {
			effective[perm] = struct{}{}
		}
		for _, o := range overrides {
			switch o.Effect {
			case domain.OverrideGrant:
				effective[o.Permission] = struct{}{}
			case domain.OverrideRevoke:
				delete(effective, o.Permission)
			}
		}

		r.cache.SetDefault(userID, effective)
		return effective, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[domain.Permission]struct{}), nil
}

// Grant records a per-user grant override and drops the cached set.
func (r *Resolver) Grant(ctx context.Context, userID string, perm domain.Permission) error {
	if err := r.store.SetOverride(ctx, userID, perm, domain.OverrideGrant); err != nil {
		return r.mapWriteError(err)
	}
	r.invalidate(userID)
	return nil
}

// Revoke records a per-user revoke override and drops the cached set.
func (r *Resolver) Revoke(ctx context.Context, userID string, perm domain.Permission) error {
	if err := r.store.SetOverride(ctx, userID, perm, domain.OverrideRevoke); err != nil {
		return r.mapWriteError(err)
	}
	r.invalidate(userID)
	return nil
}

// ClearOverride removes an override, restoring the role default.
func (r *Resolver) ClearOverride(ctx context.Context, userID string, perm domain.Permission) error {
	if err := r.store.ClearOverride(ctx, userID, perm); err != nil {
		return r.mapWriteError(err)
	}
	r.invalidate(userID)
	return nil
}

func (r *Resolver) invalidate(userID string) {
	r.cache.Delete(userID)
	if r.logger != nil {
		r.logger.Debug("permission cache invalidated", zap.String("user_id", userID))
	}
}

func (r *Resolver) mapWriteError(err error) error {
	if errors.Is(err, ErrUserNotFound) {
		return apperrors.NewNotFound("user", nil)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewServiceUnavailable(err)
	}
	return err
}
