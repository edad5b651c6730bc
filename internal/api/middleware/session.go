package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/logiflow/logiflow/internal/api/metrics"
	"github.com/logiflow/logiflow/internal/core/domain"
	"github.com/logiflow/logiflow/internal/core/ports"
)

// LoginPath is where unauthenticated browser requests are sent.
const LoginPath = "/auth/login"

// SessionReader is the part of the session manager the gates need.
type SessionReader interface {
	UserID(ctx context.Context) int64
	Destroy(ctx context.Context) error
}

// SessionGate protects browser pages. Requests without a resolvable session
// are redirected to the login page with the original URI in ?next=. A
// session whose user no longer exists is destroyed on the way out.
func SessionGate(sessions SessionReader, users ports.IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			id := sessions.UserID(ctx)
			if id == 0 {
				metrics.GateRejectionsTotal.WithLabelValues("session", "no_session").Inc()
				return redirectToLogin(c)
			}

			identity := CurrentUserFrom(c)
			if identity == nil || identity.ID != id {
				var err error
				identity, err = resolve(ctx, users, id)
				if err != nil {
					if !errors.Is(err, domain.ErrUserNotFound) {
						return err
					}
					if err := sessions.Destroy(ctx); err != nil {
						return err
					}
					metrics.GateRejectionsTotal.WithLabelValues("session", "user_gone").Inc()
					return redirectToLogin(c)
				}
			}

			SetPrincipal(c, domain.Principal{Kind: domain.AuthKindSession, Identity: identity})
			return next(c)
		}
	}
}

func redirectToLogin(c echo.Context) error {
	target := c.Request().RequestURI
	if target == "" {
		target = c.Request().URL.RequestURI()
	}
	if target == "" {
		target = "/views"
	}
	return c.Redirect(http.StatusFound, LoginPath+"?next="+url.QueryEscape(target))
}

// CurrentUser exposes the session identity, if any, to every handler and
// template. It never blocks a request: a vanished user clears the session and
// a store failure is logged and treated as anonymous.
func CurrentUser(sessions SessionReader, users ports.IdentityResolver, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			id := sessions.UserID(ctx)
			if id == 0 {
				return next(c)
			}

			identity, err := resolve(ctx, users, id)
			switch {
			case err == nil:
				SetCurrentUser(c, identity)
			case errors.Is(err, domain.ErrUserNotFound):
				if err := sessions.Destroy(ctx); err != nil {
					log.Warn().Err(err).Int64("user_id", id).Msg("destroy orphaned session")
				}
			default:
				log.Warn().Err(err).Int64("user_id", id).Msg("resolve session user")
			}
			return next(c)
		}
	}
}
