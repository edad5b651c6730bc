package domain

import (
	"strings"
	"time"
)

const (
	RoleOperator = "operador"
	// RoleLegacyOperator is the pre-migration spelling still found in old records.
	RoleLegacyOperator = "operator"

	StatusActive = "active"
)

// User models an operator or API caller known to the identity store.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt"`
}

// NewUser carries the fields a signup flow supplies to the repository.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

// NormalizeEmail trims and lower-cases an email. It is idempotent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RoleOrDefault returns role, or RoleOperator when role is blank.
func RoleOrDefault(role string) string {
	if strings.TrimSpace(role) == "" {
		return RoleOperator
	}
	return role
}
