package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/logiflow/logiflow/internal/core/domain"
	"github.com/logiflow/logiflow/internal/core/ports"
)

// AuthState is a state of the session login strategy.
type AuthState string

const (
	StateAnonymous     AuthState = "anonymous"
	StateVerifying     AuthState = "verifying"
	StateAuthenticated AuthState = "authenticated"
	StateRejected      AuthState = "rejected"
)

// AuthResult is the terminal outcome of SessionStrategy.Authenticate.
// Identity is set only when State is StateAuthenticated; Reason only when it
// is StateRejected.
type AuthResult struct {
	State    AuthState
	Identity *domain.Identity
	Reason   string
}

// Authenticated reports whether the attempt succeeded.
func (r AuthResult) Authenticated() bool {
	return r.State == StateAuthenticated && r.Identity != nil
}

func rejected() AuthResult {
	return AuthResult{State: StateRejected, Reason: domain.ReasonInvalidCredentials}
}

// PasswordVerifier is the part of PasswordService the strategy needs.
type PasswordVerifier interface {
	Verify(plain, hash string) bool
}

// SessionStrategy verifies email + password for the browser login flow and
// resolves stored session references back into identities.
type SessionStrategy struct {
	users     ports.UserRepository
	passwords PasswordVerifier
	log       zerolog.Logger
}

func NewSessionStrategy(users ports.UserRepository, passwords PasswordVerifier, log zerolog.Logger) *SessionStrategy {
	return &SessionStrategy{users: users, passwords: passwords, log: log}
}

// Authenticate runs Anonymous → Verifying → Authenticated|Rejected. The error
// return is reserved for store failures; bad credentials are a Rejected
// result carrying the same reason whether the email or the password was wrong.
func (s *SessionStrategy) Authenticate(ctx context.Context, email, password string) (AuthResult, error) {
	if domain.NormalizeEmail(email) == "" || password == "" {
		return rejected(), nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return rejected(), nil
		}
		return AuthResult{State: StateVerifying}, fmt.Errorf("session strategy: find user: %w", err)
	}

	if !s.passwords.Verify(password, user.PasswordHash) {
		return rejected(), nil
	}

	updated, err := s.users.UpdateLastLogin(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return AuthResult{State: StateVerifying}, fmt.Errorf("session strategy: update last login: %w", err)
		}
		// Deleted between lookup and stamp: nothing left to log into.
		return rejected(), nil
	}

	s.log.Debug().Int64("user_id", updated.ID).Msg("session login verified")
	return AuthResult{State: StateAuthenticated, Identity: domain.Sanitize(updated)}, nil
}

// Resolve turns a stored session reference into the current identity. A user
// that no longer exists yields domain.ErrUserNotFound and the session must be
// treated as invalid.
func (s *SessionStrategy) Resolve(ctx context.Context, userID int64) (*domain.Identity, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.Sanitize(user), nil
}
