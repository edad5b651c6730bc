package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/logiflow/logiflow/internal/core/domain"
)

const (
	principalKey   = "principal"
	currentUserKey = "currentUser"
)

type principalCtxKey struct{}

// SetPrincipal attaches p to both the echo context and the request context so
// that handlers and plain net/http code downstream can read it.
func SetPrincipal(c echo.Context, p domain.Principal) {
	c.Set(principalKey, p)
	req := c.Request()
	c.SetRequest(req.WithContext(context.WithValue(req.Context(), principalCtxKey{}, p)))
}

// PrincipalFrom returns the principal attached by SessionGate or BearerGate.
func PrincipalFrom(c echo.Context) (domain.Principal, bool) {
	p, ok := c.Get(principalKey).(domain.Principal)
	return p, ok && p.Identity != nil
}

// PrincipalFromContext is PrincipalFrom for code that only has the request
// context.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(domain.Principal)
	return p, ok && p.Identity != nil
}

// CurrentUserFrom returns the identity set by CurrentUser, or nil.
func CurrentUserFrom(c echo.Context) *domain.Identity {
	id, _ := c.Get(currentUserKey).(*domain.Identity)
	return id
}

// SetCurrentUser records the session identity for templates.
func SetCurrentUser(c echo.Context, identity *domain.Identity) {
	c.Set(currentUserKey, identity)
}
