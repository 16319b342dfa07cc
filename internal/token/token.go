package token

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/trust-core/internal/config"
	"github.com/spec-kit/trust-core/internal/domain"
)

// Claims is the JWT payload carried by both token classes.
type Claims struct {
	Email      string           `json:"email,omitempty"`
	Role       domain.Role      `json:"role"`
	RetailerID string           `json:"retailer_id,omitempty"`
	TokenType  domain.TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Principal reconstructs the request principal from verified claims.
func (c *Claims) Principal() *domain.Principal {
	return &domain.Principal{
		UserID:     c.Subject,
		Email:      c.Email,
		Role:       c.Role,
		RetailerID: c.RetailerID,
	}
}

// Service issues and verifies access and refresh tokens. The two
// classes sign with independent secrets so a leaked refresh secret
// cannot mint access tokens, and vice versa. The service holds no
// mutable state and is safe under unbounded concurrency.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	logger        *zap.Logger
	now           func() time.Time
}

// NewService builds the token service from configuration.
func NewService(cfg config.TokenConfig, logger *zap.Logger) *Service {
	return &Service{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL(),
		refreshTTL:    cfg.RefreshTTL(),
		issuer:        cfg.Issuer,
		logger:        logger,
		now:           time.Now,
	}
}

// Issue signs a token of the given class for the principal.
func (s *Service) Issue(principal *domain.Principal, tokenType domain.TokenType) (string, time.Time, error) {
	if principal == nil || principal.UserID == "" {
		return "", time.Time{}, errors.New("principal with user id is required")
	}
	secret, ttl, err := s.classConfig(tokenType)
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	// No jti: a token's payload is fully determined by the principal
	// and the issuance timestamp.
	claims := &Claims{
		Email:      principal.Email,
		Role:       principal.Role,
		RetailerID: principal.RetailerID,
		TokenType:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   principal.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token against the expected class.
// Every failure mode returns nil: malformed structure, bad signature,
// expiry, and class mismatch are indistinguishable to the caller. The
// specific reason is only recorded in the debug log.
func (s *Service) Verify(tokenStr string, expectedType domain.TokenType) *Claims {
	secret, _, err := s.classConfig(expectedType)
	if err != nil {
		s.debug("unknown token class requested", err)
		return nil
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		s.debug("token rejected", err)
		return nil
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		s.debug("token claims invalid", nil)
		return nil
	}
	if claims.TokenType != expectedType {
		s.debug("token class mismatch", nil)
		return nil
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		s.debug("token identity incomplete", nil)
		return nil
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		s.debug("token timestamps missing", nil)
		return nil
	}
	return claims
}

func (s *Service) classConfig(tokenType domain.TokenType) ([]byte, time.Duration, error) {
	switch tokenType {
	case domain.TokenTypeAccess:
		return s.accessSecret, s.accessTTL, nil
	case domain.TokenTypeRefresh:
		return s.refreshSecret, s.refreshTTL, nil
	default:
		return nil, 0, errors.New("unknown token type")
	}
}

func (s *Service) debug(msg string, err error) {
	if s.logger == nil {
		return
	}
	if err != nil {
		s.logger.Debug(msg, zap.Error(err))
		return
	}
	s.logger.Debug(msg)
}
