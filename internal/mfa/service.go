package mfa

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/trust-core/internal/audit"
	"github.com/spec-kit/trust-core/internal/config"
	"github.com/spec-kit/trust-core/internal/crypto"
	"github.com/spec-kit/trust-core/internal/domain"
	"github.com/spec-kit/trust-core/internal/mfa/totp"
)

const backupCodeBytes = 5 // 10 hex characters per code

var (
	// ErrNotEnrolled is returned when an operation requires an
	// enrollment that does not exist.
	ErrNotEnrolled = errors.New("mfa not enrolled")

	// ErrNoPendingEnrollment is returned by Enable when there is no
	// verification-pending enrollment to promote.
	ErrNoPendingEnrollment = errors.New("no pending mfa enrollment")

	// ErrAlreadyEnabled is returned by GenerateSecret when the user is
	// already enrolled and enabled. Re-enrollment requires an explicit
	// Disable first.
	ErrAlreadyEnabled = errors.New("mfa already enabled")
)

// Setup is the one-time response to a successful enrollment request.
// The raw secret and backup codes are never exposed again.
type Setup struct {
	Secret      string
	OTPAuthURL  string
	BackupCodes []string
}

// Service manages per-user TOTP enrollment. Writes for one user are
// serialized through a per-user mutex so concurrent enrollments cannot
// race a verification against two different pending secrets.
type Service struct {
	store   EnrollmentStore
	crypto  *crypto.Service
	auditor audit.Dispatcher
	logger  *zap.Logger

	issuer      string
	skewSteps   int
	backupCount int

	locks sync.Map // userID -> *sync.Mutex
	now   func() time.Time

	// usedSteps holds the highest TOTP step already accepted per user.
	// A code at or below that step never verifies again, so observing
	// a code in transit is worthless once it has been used.
	usedSteps sync.Map // userID -> int64
}

// NewService builds the MFA service.
func NewService(cfg config.MFAConfig, store EnrollmentStore, cryptoSvc *crypto.Service, auditor audit.Dispatcher, logger *zap.Logger) *Service {
	skew := cfg.SkewSteps
	if skew < 0 {
		skew = 1
	}
	count := cfg.BackupCodeCount
	if count <= 0 {
		count = 10
	}
	return &Service{
		store:       store,
		crypto:      cryptoSvc,
		auditor:     auditor,
		logger:      logger,
		issuer:      cfg.Issuer,
		skewSteps:   skew,
		backupCount: count,
		now:         time.Now,
	}
}

// GenerateSecret starts (or restarts) enrollment for the user. The
// TOTP secret is persisted encrypted and the backup codes hashed; the
// raw values are returned exactly once. A repeat call before
// verification replaces the previous pending enrollment.
func (s *Service) GenerateSecret(ctx context.Context, userID, email string) (*Setup, error) {
	if userID == "" || email == "" {
		return nil, errors.New("user id and email are required")
	}

	unlock := s.lockUser(userID)
	defer unlock()

	current, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.Enabled() {
		return nil, ErrAlreadyEnabled
	}

	_, secretB32, err := totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	secretEnc, err := s.crypto.Encrypt(ctx, secretB32)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, s.backupCount)
	hashes := make([]string, 0, s.backupCount)
	for i := 0; i < s.backupCount; i++ {
		code, err := s.crypto.GenerateToken(backupCodeBytes)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, s.crypto.Hash(code))
	}

	now := s.now().UTC()
	enrollment := &domain.MFAEnrollment{
		UserID:          userID,
		SecretEncrypted: secretEnc,
		BackupCodes:     hashes,
		Status:          domain.MFAStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Upsert(ctx, enrollment); err != nil {
		return nil, err
	}
	s.usedSteps.Delete(userID)

	s.publish(ctx, audit.EventMFAEnrolled, userID, nil)
	return &Setup{
		Secret:      secretB32,
		OTPAuthURL:  totp.OTPAuthURL(s.issuer, email, secretB32),
		BackupCodes: codes,
	}, nil
}

// VerifyToken accepts either a TOTP code within the configured clock
// skew or an unused backup code. A matched backup code is consumed
// immediately, and a matched TOTP step is burned so the same code
// cannot verify twice. An invalid code is a plain false, never an
// error.
func (s *Service) VerifyToken(ctx context.Context, userID, code string) (bool, error) {
	if userID == "" || code == "" {
		return false, nil
	}

	unlock := s.lockUser(userID)
	defer unlock()

	enrollment, err := s.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if enrollment == nil || enrollment.Status == domain.MFAStatusNotEnrolled {
		return false, nil
	}

	secretB32, err := s.crypto.Decrypt(ctx, enrollment.SecretEncrypted)
	if err != nil {
		// A stored secret that no longer decrypts means corruption or
		// tampering; this must halt the flow rather than read as a
		// wrong code.
		s.debug("stored mfa secret unreadable", userID, err)
		return false, err
	}
	secret, err := totp.DecodeSecret(secretB32)
	if err != nil {
		return false, err
	}

	if ok, step := totp.Verify(secret, code, s.now(), s.skewSteps); ok {
		if last, found := s.usedSteps.Load(userID); found && step <= last.(int64) {
			s.debug("totp code replayed", userID, nil)
			s.publish(ctx, audit.EventMFARejected, userID, map[string]any{"reason": "code_replayed"})
			return false, nil
		}
		s.usedSteps.Store(userID, step)
		return true, nil
	}

	consumed, err := s.store.ConsumeBackupCode(ctx, userID, s.crypto.Hash(code))
	if err != nil {
		return false, err
	}
	if consumed {
		s.publish(ctx, audit.EventMFABackupUsed, userID, nil)
		return true, nil
	}

	s.debug("mfa code rejected", userID, nil)
	s.publish(ctx, audit.EventMFARejected, userID, nil)
	return false, nil
}

// Enable promotes a pending enrollment to enabled. Callers must only
// invoke it after a successful VerifyToken in the same flow.
func (s *Service) Enable(ctx context.Context, userID string) error {
	unlock := s.lockUser(userID)
	defer unlock()

	enrollment, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if enrollment == nil {
		return ErrNotEnrolled
	}
	if enrollment.Status != domain.MFAStatusPending {
		return ErrNoPendingEnrollment
	}

	if err := s.store.SetStatus(ctx, userID, domain.MFAStatusEnabled); err != nil {
		return err
	}
	s.publish(ctx, audit.EventMFAEnabled, userID, nil)
	return nil
}

// Disable removes the user's enrollment entirely.
func (s *Service) Disable(ctx context.Context, userID string) error {
	unlock := s.lockUser(userID)
	defer unlock()
	if err := s.store.Delete(ctx, userID); err != nil {
		return err
	}
	s.usedSteps.Delete(userID)
	return nil
}

// Status reports the user's enrollment state.
func (s *Service) Status(ctx context.Context, userID string) (domain.MFAStatus, error) {
	enrollment, err := s.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if enrollment == nil {
		return domain.MFAStatusNotEnrolled, nil
	}
	return enrollment.Status, nil
}

func (s *Service) debug(msg, userID string, err error) {
	if s.logger == nil {
		return
	}
	fields := []zap.Field{zap.String("user_id", userID)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	s.logger.Debug(msg, fields...)
}

func (s *Service) lockUser(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) publish(ctx context.Context, eventType audit.EventType, userID string, details map[string]any) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Publish(ctx, audit.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: s.now().UTC(),
		Details:   details,
	})
}
