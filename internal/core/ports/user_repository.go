package ports

import (
	"context"

	"github.com/logiflow/logiflow/internal/core/domain"
)

// UserRepository defines identity persistence. Implementations normalize the
// email on every read and write and report a missing record as
// domain.ErrUserNotFound rather than a driver error.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// IsEmailTaken performs a projection-only existence check. When excludeID
	// is non-nil the record with that id is ignored.
	IsEmailTaken(ctx context.Context, email string, excludeID *int64) (bool, error)
	// Create assigns the id from the sequence generator and inserts the record.
	// A uniqueness violation is reported as domain.ErrEmailInUse.
	Create(ctx context.Context, in domain.NewUser) (*domain.User, error)
	// UpdateLastLogin stamps lastLoginAt/updatedAt and returns the updated
	// record without its password hash.
	UpdateLastLogin(ctx context.Context, id int64) (*domain.User, error)
}

// RoleMaintainer backs the role-maintenance CLI.
type RoleMaintainer interface {
	RenameRole(ctx context.Context, from, to string) (matched, modified int64, err error)
	SetRoleByEmail(ctx context.Context, email, role string) (matched, modified int64, err error)
}

// SequenceGenerator hands out monotonic ids per named sequence.
type SequenceGenerator interface {
	Next(ctx context.Context, name string) (int64, error)
}
