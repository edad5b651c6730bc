package session

import (
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Middleware loads the session named by the request cookie and commits it
// before the response header is written.
//
// A store failure while loading is not fatal: the request continues with an
// empty anonymous session, so bearer routes and public pages keep working
// while the session backend is down. Gates then see no signed-in user.
func (m *Manager) Middleware(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			res.Header().Add("Vary", "Cookie")

			var token string
			if cookie, err := req.Cookie(m.Cookie.Name); err == nil {
				token = cookie.Value
			}

			ctx, err := m.Load(req.Context(), token)
			if err != nil {
				log.Warn().Err(err).Msg("session load failed, continuing anonymous")
				if ctx, err = m.Load(req.Context(), ""); err != nil {
					return err
				}
			}
			c.SetRequest(req.WithContext(ctx))

			committed := false
			commit := func() {
				if committed {
					return
				}
				committed = true
				m.commit(c, log)
			}
			res.Before(commit)

			err = next(c)
			if !res.Committed {
				commit()
			}
			return err
		}
	}
}

// commit persists a modified session and writes the cookie. A store failure
// here cannot change a response that is already on its way, so the cookie is
// withheld and the client stays signed out.
func (m *Manager) commit(c echo.Context, log zerolog.Logger) {
	ctx := c.Request().Context()
	w := c.Response()

	switch m.Status(ctx) {
	case scs.Modified:
		token, expiry, err := m.Commit(ctx)
		if err != nil {
			log.Error().Err(err).Str("path", c.Path()).Msg("session commit failed")
			return
		}
		m.WriteSessionCookie(ctx, w, token, expiry)
	case scs.Destroyed:
		m.WriteSessionCookie(ctx, w, "", time.Time{})
	}
}
