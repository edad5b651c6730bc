package handler

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logiflow/logiflow/internal/core/domain"
)

func TestValidator_UsesTagNames(t *testing.T) {
	err := NewValidator().Validate(&signupRequest{})

	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "expected *domain.ValidationError, got %v", err)
	assert.Equal(t, []string{
		"name is required",
		"email is required",
		"password is required",
	}, ve.Violations)
}

func TestValidator_PasswordConfirmation(t *testing.T) {
	err := NewValidator().Validate(&signupForm{Name: "a", Email: "a@b.com", Password: "secret1", PasswordConfirm: "secret2"})

	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"passwords do not match"}, ve.Violations)
}

func TestValidator_Valid(t *testing.T) {
	err := NewValidator().Validate(&signupForm{Name: "a", Email: "a@b.com", Password: "secret1", PasswordConfirm: "secret1"})
	assert.NoError(t, err)
}

func TestValidator_PasswordRules(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     []string
	}{
		{name: "whitespace only", password: strings.Repeat(" ", 7), want: []string{"password is required"}},
		{name: "too short", password: "abc", want: []string{"password must be at least 6 characters"}},
		{name: "72 ascii bytes", password: strings.Repeat("a", 72)},
		{name: "73 ascii bytes", password: strings.Repeat("a", 73), want: []string{"password must be at most 72 bytes"}},
		{name: "40 two-byte runes", password: strings.Repeat("é", 40), want: []string{"password must be at most 72 bytes"}},
		{name: "36 two-byte runes", password: strings.Repeat("é", 36)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidator().Validate(&signupForm{Name: "a", Email: "a@b.com", Password: tt.password, PasswordConfirm: tt.password})
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.want, ve.Violations)
		})
	}
}
