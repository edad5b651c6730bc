package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/logiflow/logiflow/internal/api/metrics"
)

const (
	// CSRFFieldName is the hidden form field carrying the token.
	CSRFFieldName = "csrf_token"
	// CSRFHeader carries the token for scripted requests.
	CSRFHeader = "X-CSRF-Token"

	csrfCookieName = "logiflow.csrf"
	msgCSRFInvalid = "CSRF_TOKEN_INVALID"
)

// CSRFOptions configures CSRFProtect.
type CSRFOptions struct {
	// Secret authenticates the token cookie. Use 32 random bytes.
	Secret []byte
	// Secure marks the cookie Secure and turns on the TLS Referer check.
	Secure bool
	// TrustedOrigins lists extra hosts allowed to post forms.
	TrustedOrigins []string
}

type csrfCallKey struct{}

// csrfCall threads the echo request through the net/http handler chain that
// gorilla/csrf expects.
type csrfCall struct {
	c      echo.Context
	next   echo.HandlerFunc
	err    error
	passed bool
	reason error
}

// CSRFProtect guards the browser form routes, login included, with a
// double-submit token. Safe methods only mint the token; unsafe ones must
// echo it back in CSRFFieldName or CSRFHeader. Rejections are answered 403
// through the central error handler.
//
// Bearer routes are not mounted behind it: they carry no ambient credential.
func CSRFProtect(opts CSRFOptions, log zerolog.Logger) echo.MiddlewareFunc {
	protect := csrf.Protect(
		opts.Secret,
		csrf.CookieName(csrfCookieName),
		csrf.FieldName(CSRFFieldName),
		csrf.RequestHeader(CSRFHeader),
		csrf.Secure(opts.Secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.Path("/"),
		csrf.TrustedOrigins(opts.TrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			if call, ok := r.Context().Value(csrfCallKey{}).(*csrfCall); ok {
				call.reason = csrf.FailureReason(r)
			}
		})),
	)

	inner := protect(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		call := r.Context().Value(csrfCallKey{}).(*csrfCall)
		call.passed = true
		call.c.SetRequest(r)
		call.err = call.next(call.c)
	}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			call := &csrfCall{c: c, next: next}
			req := c.Request()
			if !opts.Secure {
				req = csrf.PlaintextHTTPRequest(req)
			}
			req = req.WithContext(context.WithValue(req.Context(), csrfCallKey{}, call))

			inner.ServeHTTP(c.Response(), req)
			if !call.passed {
				metrics.GateRejectionsTotal.WithLabelValues("csrf", "bad_token").Inc()
				log.Warn().Err(call.reason).Str("path", c.Path()).Msg("csrf check failed")
				return echo.NewHTTPError(http.StatusForbidden, msgCSRFInvalid)
			}
			return call.err
		}
	}
}

// CSRFToken returns the masked token for the current request, or "" when the
// route is not behind CSRFProtect.
func CSRFToken(c echo.Context) string {
	return csrf.Token(c.Request())
}
