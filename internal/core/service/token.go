package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/logiflow/logiflow/internal/core/domain"
)

// DefaultTokenTTL is how long a bearer token stays valid unless overridden.
const DefaultTokenTTL = 4 * time.Hour

// TokenClaims is the signed payload of a bearer token.
type TokenClaims struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenConfig is fixed at startup.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(cfg TokenConfig) *TokenService {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: cfg.Secret, ttl: ttl, now: time.Now}
}

type issueOptions struct {
	ttl    time.Duration
	hasTTL bool
}

// IssueOption customizes a single Issue call.
type IssueOption func(*issueOptions)

// WithExpiry overrides the configured lifetime for one token. Zero or
// negative durations produce a token that is already expired.
func WithExpiry(d time.Duration) IssueOption {
	return func(o *issueOptions) {
		o.ttl = d
		o.hasTTL = true
	}
}

// Issue signs a token for identity.
func (s *TokenService) Issue(identity *domain.Identity, opts ...IssueOption) (string, error) {
	if identity == nil {
		return "", fmt.Errorf("issue token: %w: identity is required", domain.ErrInvalidInput)
	}

	o := issueOptions{ttl: s.ttl}
	for _, opt := range opts {
		opt(&o)
	}

	now := s.now()
	claims := TokenClaims{
		ID:    identity.ID,
		Email: identity.Email,
		Role:  domain.RoleOrDefault(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(o.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return signed, nil
}

// IssueForUser sanitizes u and signs a token for it.
func (s *TokenService) IssueForUser(u *domain.User, opts ...IssueOption) (string, error) {
	return s.Issue(domain.Sanitize(u), opts...)
}

// Verify checks signature, structure and expiry. The returned claims are a
// capability claim; callers re-resolve the identity before trusting it.
func (s *TokenService) Verify(token string) (*TokenClaims, error) {
	if token == "" {
		return nil, domain.ErrMissingToken
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ID <= 0 {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
