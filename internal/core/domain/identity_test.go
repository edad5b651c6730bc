package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSanitize_Nil(t *testing.T) {
	if got := Sanitize(nil); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestSanitize_DropsSecrets(t *testing.T) {
	now := time.Now().UTC()
	u := &User{
		ID:           7,
		Email:        "ana@logiflow.test",
		Name:         "Ana",
		PasswordHash: "$2a$10$secret",
		Role:         RoleOperator,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLoginAt:  &now,
	}

	id := Sanitize(u)
	if id.ID != 7 || id.Email != u.Email || id.Role != RoleOperator {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.LastLoginAt == u.LastLoginAt {
		t.Fatalf("lastLoginAt must be copied, not shared")
	}

	raw, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, forbidden := range []string{"passwordHash", "$2a$10$secret", "_id"} {
		if strings.Contains(body, forbidden) {
			t.Fatalf("sanitized output leaks %q: %s", forbidden, body)
		}
	}
}

func TestUserJSON_NeverSerializesHash(t *testing.T) {
	raw, err := json.Marshal(User{ID: 1, PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), `:"hash"`) || strings.Contains(string(raw), "passwordHash") {
		t.Fatalf("password hash field serialized: %s", raw)
	}
}

func TestNormalizeEmail_Idempotent(t *testing.T) {
	cases := []string{"  USER@Example.com ", "user@example.com", "\tMiXeD@Case.ORG\n", ""}
	for _, in := range cases {
		once := NormalizeEmail(in)
		if twice := NormalizeEmail(once); twice != once {
			t.Fatalf("normalize not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
	if got := NormalizeEmail("  USER@Example.com "); got != "user@example.com" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestRoleOrDefault(t *testing.T) {
	if RoleOrDefault("") != RoleOperator || RoleOrDefault("  ") != RoleOperator {
		t.Fatalf("blank role should default to %s", RoleOperator)
	}
	if RoleOrDefault("admin") != "admin" {
		t.Fatalf("explicit role should be kept")
	}
}

func TestValidationError_IsErrValidation(t *testing.T) {
	err := error(&ValidationError{Violations: []string{"name is required"}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected errors.Is to match ErrValidation")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Fatalf("violation missing from message: %s", err)
	}
}
