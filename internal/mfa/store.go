package mfa

import (
	"context"
	"sync"

	"github.com/spec-kit/trust-core/internal/domain"
)

// EnrollmentStore is the storage collaborator for MFA state. Get
// returns (nil, nil) for users who never enrolled. ConsumeBackupCode
// must remove the matched code atomically so it can be used exactly
// once even under concurrent verification attempts.
type EnrollmentStore interface {
	Get(ctx context.Context, userID string) (*domain.MFAEnrollment, error)
	Upsert(ctx context.Context, enrollment *domain.MFAEnrollment) error
	SetStatus(ctx context.Context, userID string, status domain.MFAStatus) error
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)
	Delete(ctx context.Context, userID string) error
}

// MemoryStore is an in-process EnrollmentStore for tests and
// single-instance development setups.
type MemoryStore struct {
	mu          sync.Mutex
	enrollments map[string]*domain.MFAEnrollment
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{enrollments: make(map[string]*domain.MFAEnrollment)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (*domain.MFAEnrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[userID]
	if !ok {
		return nil, nil
	}
	clone := *e
	clone.BackupCodes = append([]string(nil), e.BackupCodes...)
	return &clone, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, enrollment *domain.MFAEnrollment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *enrollment
	clone.BackupCodes = append([]string(nil), enrollment.BackupCodes...)
	s.enrollments[enrollment.UserID] = &clone
	return nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, userID string, status domain.MFAStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[userID]
	if !ok {
		return nil
	}
	e.Status = status
	return nil
}

func (s *MemoryStore) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[userID]
	if !ok {
		return false, nil
	}
	for i, h := range e.BackupCodes {
		if h == codeHash {
			e.BackupCodes = append(e.BackupCodes[:i], e.BackupCodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enrollments, userID)
	return nil
}
