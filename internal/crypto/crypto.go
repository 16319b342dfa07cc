package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/semaphore"
)

const (
	// MinMasterKeyLength is enforced at construction, not first use.
	MinMasterKeyLength = 32

	saltLength = 64
	ivLength   = 16
	tagLength  = 16
	keyLength  = 32

	kdfIterations = 100_000

	blobSeparator = ":"
	blobParts     = 4
)

var (
	// ErrMasterKeyTooShort is returned by New for undersized keys.
	ErrMasterKeyTooShort = fmt.Errorf("master key must be at least %d characters", MinMasterKeyLength)

	// ErrInvalidBlob indicates a malformed encrypted blob: wrong field
	// count, bad hex, or truncated segments.
	ErrInvalidBlob = errors.New("invalid encrypted blob")

	// ErrDecryptionFailed indicates the authentication tag did not
	// verify. The input was tampered with or encrypted under a
	// different key.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Service provides authenticated field-level encryption for PII,
// one-way hashing and secure random token generation. All methods are
// safe for concurrent use.
type Service struct {
	masterKey []byte

	// The per-call PBKDF2 derivation is deliberately slow. A weighted
	// semaphore keeps concurrent derivations from starving unrelated
	// request handlers of CPU.
	kdfSlots *semaphore.Weighted
}

// New builds a Service. Keys shorter than MinMasterKeyLength are
// rejected immediately.
func New(masterKey string) (*Service, error) {
	if len(masterKey) < MinMasterKeyLength {
		return nil, ErrMasterKeyTooShort
	}
	slots := int64(runtime.GOMAXPROCS(0))
	if slots < 1 {
		slots = 1
	}
	return &Service{
		masterKey: []byte(masterKey),
		kdfSlots:  semaphore.NewWeighted(slots),
	}, nil
}

// Encrypt seals plaintext under a key derived from the master key and
// a fresh random salt. The result is hex(salt):hex(iv):hex(tag):hex(ct).
// Encrypting the same plaintext twice yields different blobs.
func (s *Service) Encrypt(ctx context.Context, plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	key, err := s.deriveKey(ctx, salt)
	if err != nil {
		return "", err
	}

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	// Seal appends the tag to the ciphertext; the wire format keeps
	// them as separate fields.
	ct := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	return strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ct),
	}, blobSeparator), nil
}

// Decrypt reverses Encrypt. Any tampering with the ciphertext or tag,
// and any structural defect in the blob, yields an error rather than
// garbage plaintext.
func (s *Service) Decrypt(ctx context.Context, blob string) (string, error) {
	parts := strings.Split(blob, blobSeparator)
	if len(parts) != blobParts {
		return "", fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidBlob, blobParts, len(parts))
	}

	salt, err := decodeSegment(parts[0], saltLength)
	if err != nil {
		return "", err
	}
	iv, err := decodeSegment(parts[1], ivLength)
	if err != nil {
		return "", err
	}
	tag, err := decodeSegment(parts[2], tagLength)
	if err != nil {
		return "", err
	}
	ct, err := hex.DecodeString(parts[3])
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext is not valid hex", ErrInvalidBlob)
	}

	key, err := s.deriveKey(ctx, salt)
	if err != nil {
		return "", err
	}

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// Hash returns the deterministic sha256 hex digest of text. Intended
// for non-reversible fingerprints, not password storage.
func (s *Service) Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GenerateToken returns length random bytes as a hex string (2×length
// characters), suitable for opaque identifiers and backup codes.
func (s *Service) GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", length)
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) deriveKey(ctx context.Context, salt []byte) ([]byte, error) {
	if err := s.kdfSlots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.kdfSlots.Release(1)
	return pbkdf2.Key(s.masterKey, salt, kdfIterations, keyLength, sha512.New), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return aead, nil
}

func decodeSegment(segment string, wantLen int) ([]byte, error) {
	b, err := hex.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: segment is not valid hex", ErrInvalidBlob)
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("%w: segment length %d, expected %d", ErrInvalidBlob, len(b), wantLen)
	}
	return b, nil
}
