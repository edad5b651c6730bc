package service

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/logiflow/logiflow/internal/core/domain"
)

// DefaultPasswordCost is the bcrypt work factor used when none is configured.
const DefaultPasswordCost = 10

// PasswordService derives and verifies bcrypt password hashes.
type PasswordService struct {
	cost int
}

// NewPasswordService returns a PasswordService with the given work factor.
// Non-positive values fall back to DefaultPasswordCost; the rest is clamped
// to the range bcrypt accepts.
func NewPasswordService(cost int) *PasswordService {
	return &PasswordService{cost: clampCost(cost)}
}

// Cost reports the effective work factor.
func (s *PasswordService) Cost() int {
	return s.cost
}

// Hash returns a salted bcrypt hash of password.
func (s *PasswordService) Hash(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("hash password: %w: password is required", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("hash password: %w: %v", domain.ErrInvalidInput, err)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plain matches hash. It never fails: empty input and
// malformed hashes simply do not match.
func (s *PasswordService) Verify(plain, hash string) bool {
	if plain == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

func clampCost(cost int) int {
	switch {
	case cost <= 0:
		return DefaultPasswordCost
	case cost < bcrypt.MinCost:
		return bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		return bcrypt.MaxCost
	default:
		return cost
	}
}
