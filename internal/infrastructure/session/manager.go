// Package session wraps scs with the identity-specific operations used by the
// browser login flows and the session gate.
package session

import (
	"context"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/logiflow/logiflow/internal/core/domain"
)

// Session data keys
const (
	KeyUserID  = "user_id"
	KeyEmail   = "email"
	KeyRole    = "role"
	KeyLoginAt = "login_at"
)

func init() {
	gob.Register(time.Time{})
}

// Options configures cookie and lifetime behaviour.
type Options struct {
	CookieName string
	Lifetime   time.Duration
	Secure     bool
}

// Manager wraps scs.SessionManager with application-specific methods.
type Manager struct {
	*scs.SessionManager
}

// NewManager creates a session manager backed by store, which is typically
// the Redis session store.
func NewManager(store scs.Store, opts Options) *Manager {
	sm := scs.New()
	sm.Store = store
	sm.Lifetime = opts.Lifetime

	if opts.CookieName != "" {
		sm.Cookie.Name = opts.CookieName
	}
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = opts.Secure
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Persist = true

	return &Manager{SessionManager: sm}
}

// Establish stores a sanitized identity in a fresh session. The token is
// renewed first so a pre-login session id can never be reused.
func (m *Manager) Establish(ctx context.Context, identity *domain.Identity) error {
	if err := m.RenewToken(ctx); err != nil {
		return err
	}
	m.Put(ctx, KeyUserID, identity.ID)
	m.Put(ctx, KeyEmail, identity.Email)
	m.Put(ctx, KeyRole, identity.Role)
	m.Put(ctx, KeyLoginAt, time.Now().UTC())
	return nil
}

// UserID returns the stored identity reference, or 0 when anonymous.
func (m *Manager) UserID(ctx context.Context) int64 {
	id, _ := m.Get(ctx, KeyUserID).(int64)
	return id
}
