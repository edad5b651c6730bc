package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/logiflow/logiflow/internal/core/domain"
	"github.com/logiflow/logiflow/internal/core/ports"
)

// PasswordHasher is the full password policy used by the orchestrator.
type PasswordHasher interface {
	PasswordVerifier
	Hash(password string) (string, error)
}

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Issue(identity *domain.Identity, opts ...IssueOption) (string, error)
}

// AuthService implements signup and the JSON login flow.
type AuthService struct {
	users     ports.UserRepository
	passwords PasswordHasher
	tokens    TokenIssuer
	log       zerolog.Logger
}

func NewAuthService(users ports.UserRepository, passwords PasswordHasher, tokens TokenIssuer, log zerolog.Logger) *AuthService {
	return &AuthService{users: users, passwords: passwords, tokens: tokens, log: log}
}

// Register creates an operator account. The uniqueness pre-check only saves a
// bcrypt round; the repository's unique index is what actually decides.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Identity, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, fmt.Errorf("register: %w", domain.ErrInvalidInput)
	}

	taken, err := s.users.IsEmailTaken(ctx, email, nil)
	if err != nil {
		return nil, fmt.Errorf("register: check email: %w", err)
	}
	if taken {
		return nil, domain.ErrEmailInUse
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	created, err := s.users.Create(ctx, domain.NewUser{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleOperator,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailInUse) {
			return nil, domain.ErrEmailInUse
		}
		return nil, fmt.Errorf("register: create user: %w", err)
	}

	s.log.Info().Int64("user_id", created.ID).Msg("user registered")
	return s.stampLogin(ctx, created)
}

// Login verifies credentials for the JSON API. Unknown email and wrong
// password both yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Identity, error) {
	if domain.NormalizeEmail(email) == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: find user: %w", err)
	}

	if !s.passwords.Verify(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	return s.stampLogin(ctx, user)
}

// IssueToken signs a bearer token for identity.
func (s *AuthService) IssueToken(identity *domain.Identity) (string, error) {
	return s.tokens.Issue(identity)
}

// stampLogin updates lastLoginAt and returns the post-update identity, or the
// pre-update one if the record vanished in between.
func (s *AuthService) stampLogin(ctx context.Context, user *domain.User) (*domain.Identity, error) {
	updated, err := s.users.UpdateLastLogin(ctx, user.ID)
	switch {
	case err == nil:
		return domain.Sanitize(updated), nil
	case errors.Is(err, domain.ErrUserNotFound):
		s.log.Warn().Int64("user_id", user.ID).Msg("user disappeared before last login update")
		return domain.Sanitize(user), nil
	default:
		return nil, fmt.Errorf("update last login: %w", err)
	}
}
