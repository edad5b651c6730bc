package ports

import (
	"context"

	"github.com/logiflow/logiflow/internal/core/domain"
)

// RegisterInput is the already-validated signup payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthService is the flow orchestrator used by the form and JSON handlers.
type AuthService interface {
	// Register creates an operator account and stamps its first login.
	Register(ctx context.Context, in RegisterInput) (*domain.Identity, error)
	// Login verifies credentials for the JSON API and stamps lastLoginAt.
	Login(ctx context.Context, email, password string) (*domain.Identity, error)
	// IssueToken signs a bearer token for an identity.
	IssueToken(identity *domain.Identity) (string, error)
}

// IdentityResolver re-resolves a stored identity reference.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID int64) (*domain.Identity, error)
}
