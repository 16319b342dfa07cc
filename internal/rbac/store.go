package rbac

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spec-kit/trust-core/internal/domain"
)

// ErrUserNotFound is returned by stores when the user id is unknown.
// The resolver maps it to a plain denial.
var ErrUserNotFound = errors.New("user not found")

// PermissionStore is the storage collaborator for permission lookups.
// Reads may run concurrently; override writes for the same
// (user, permission) key are serialized by the implementation.
type PermissionStore interface {
	GetUserRole(ctx context.Context, userID string) (domain.Role, error)
	ListOverrides(ctx context.Context, userID string) ([]domain.PermissionOverride, error)
	SetOverride(ctx context.Context, userID string, perm domain.Permission, effect domain.OverrideEffect) error
	ClearOverride(ctx context.Context, userID string, perm domain.Permission) error
}

// MemoryStore is an in-process PermissionStore used in tests and
// single-instance development setups.
type MemoryStore struct {
	mu        sync.RWMutex
	roles     map[string]domain.Role
	overrides map[string]map[domain.Permission]domain.OverrideEffect
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles:     make(map[string]domain.Role),
		overrides: make(map[string]map[domain.Permission]domain.OverrideEffect),
	}
}

// PutUser registers a user with its role.
func (s *MemoryStore) PutUser(userID string, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = role
}

func (s *MemoryStore) GetUserRole(ctx context.Context, userID string) (domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return role, nil
}

func (s *MemoryStore) ListOverrides(ctx context.Context, userID string) ([]domain.PermissionOverride, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PermissionOverride
	for perm, effect := range s.overrides[userID] {
		out = append(out, domain.PermissionOverride{
			UserID:     userID,
			Permission: perm,
			Effect:     effect,
			CreatedAt:  time.Now().UTC(),
		})
	}
	return out, nil
}

func (s *MemoryStore) SetOverride(ctx context.Context, userID string, perm domain.Permission, effect domain.OverrideEffect) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[userID]; !ok {
		return ErrUserNotFound
	}
	if s.overrides[userID] == nil {
		s.overrides[userID] = make(map[domain.Permission]domain.OverrideEffect)
	}
	s.overrides[userID][perm] = effect
	return nil
}

func (s *MemoryStore) ClearOverride(ctx context.Context, userID string, perm domain.Permission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides[userID], perm)
	return nil
}
