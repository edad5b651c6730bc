package domain

import "time"

// Identity is the externally safe projection of a User. It is the only shape
// that reaches a response body, a session, or a token-issuance caller, and no
// write path accepts it back.
type Identity struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
}

// Sanitize strips the password hash from u. A nil user yields nil.
func Sanitize(u *User) *Identity {
	if u == nil {
		return nil
	}
	id := &Identity{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		id.LastLoginAt = &t
	}
	return id
}

// AuthKind tells which gate authenticated a request.
type AuthKind string

const (
	AuthKindSession AuthKind = "session"
	AuthKindBearer  AuthKind = "bearer"
)

// Principal is what both request gates attach to an authenticated request.
// Downstream handlers consume it without caring which mechanism produced it.
type Principal struct {
	Kind     AuthKind  `json:"kind"`
	Identity *Identity `json:"identity"`
}
