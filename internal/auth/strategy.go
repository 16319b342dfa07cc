package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trust-core/internal/domain"
	"github.com/spec-kit/trust-core/internal/token"
)

// ErrNoCredential means the strategy found nothing to act on, so the
// next strategy in the chain may try. Any other error is a hard
// rejection of a credential that was present.
var ErrNoCredential = errors.New("no credential presented")

// ErrInvalidCredential covers malformed or failed credentials. The
// message stays generic so callers cannot tell which check failed.
var ErrInvalidCredential = errors.New("invalid credential")

// Strategy extracts a Principal from an inbound request. Strategies
// are composed explicitly by the caller; order decides precedence.
type Strategy interface {
	Name() string
	Extract(c *fiber.Ctx) (*domain.Principal, error)
}

// BearerTokenStrategy verifies an Authorization bearer access token.
type BearerTokenStrategy struct {
	tokens *token.Service
}

// NewBearerTokenStrategy builds the bearer strategy.
func NewBearerTokenStrategy(tokens *token.Service) *BearerTokenStrategy {
	return &BearerTokenStrategy{tokens: tokens}
}

func (s *BearerTokenStrategy) Name() string { return "bearer_token" }

func (s *BearerTokenStrategy) Extract(c *fiber.Ctx) (*domain.Principal, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return nil, ErrNoCredential
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrInvalidCredential
	}

	claims := s.tokens.Verify(parts[1], domain.TokenTypeAccess)
	if claims == nil {
		return nil, ErrInvalidCredential
	}
	return claims.Principal(), nil
}

// TrustedHeaderStrategy reads identity from X-Auth-* headers set by an
// upstream gateway that already authenticated the request. It must
// only be composed when the deployment explicitly opts in
// (AUTH_TRUST_PROXY_HEADERS); constructing it is that opt-in.
type TrustedHeaderStrategy struct{}

// NewTrustedHeaderStrategy builds the trusted-header strategy.
func NewTrustedHeaderStrategy() *TrustedHeaderStrategy {
	return &TrustedHeaderStrategy{}
}

func (s *TrustedHeaderStrategy) Name() string { return "trusted_header" }

func (s *TrustedHeaderStrategy) Extract(c *fiber.Ctx) (*domain.Principal, error) {
	userID := strings.TrimSpace(c.Get("X-Auth-User-Id"))
	if userID == "" {
		return nil, ErrNoCredential
	}

	role := domain.Role(strings.TrimSpace(c.Get("X-Auth-Role")))
	if !role.Valid() {
		return nil, ErrInvalidCredential
	}

	return &domain.Principal{
		UserID:     userID,
		Email:      strings.TrimSpace(c.Get("X-Auth-Email")),
		Role:       role,
		RetailerID: strings.TrimSpace(c.Get("X-Auth-Retailer-Id")),
	}, nil
}
