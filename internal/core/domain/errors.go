package domain

import (
	"errors"
	"strings"
)

// ReasonInvalidCredentials is the single rejection reason exposed by every
// login path, whatever factor actually failed.
const ReasonInvalidCredentials = "invalid credentials"

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New(ReasonInvalidCredentials)
	ErrEmailInUse         = errors.New("email already registered")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError collects every violation found in a payload.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(e.Violations, "; ")
}

// Is lets errors.Is(err, ErrValidation) match any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
