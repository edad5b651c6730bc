package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/logiflow/logiflow/internal/api/metrics"
	"github.com/logiflow/logiflow/internal/api/middleware"
	"github.com/logiflow/logiflow/internal/core/domain"
	"github.com/logiflow/logiflow/internal/core/ports"
	"github.com/logiflow/logiflow/internal/core/service"
)

// Authenticator is the session login strategy.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (service.AuthResult, error)
}

// SessionWriter establishes and tears down browser sessions.
type SessionWriter interface {
	Establish(ctx context.Context, identity *domain.Identity) error
	Destroy(ctx context.Context) error
}

// FormHandler serves the browser login, signup and logout flows.
type FormHandler struct {
	strategy Authenticator
	auth     ports.AuthService
	sessions SessionWriter
	log      zerolog.Logger
}

func NewFormHandler(strategy Authenticator, auth ports.AuthService, sessions SessionWriter, log zerolog.Logger) *FormHandler {
	return &FormHandler{strategy: strategy, auth: auth, sessions: sessions, log: log}
}

type signupForm struct {
	Name            string `form:"name" validate:"required"`
	Email           string `form:"email" validate:"required"`
	Password        string `form:"password" validate:"notblank,min=6,maxbytes=72"`
	PasswordConfirm string `form:"passwordConfirm" validate:"eqfield=Password"`
	Next            string `form:"next"`
}

// LoginPage renders the login form. Signed-in users go straight to the
// dashboard.
func (h *FormHandler) LoginPage(c echo.Context) error {
	if middleware.CurrentUserFrom(c) != nil {
		return c.Redirect(http.StatusFound, DefaultRedirect)
	}
	data := newPageData(c, "Log in")
	data.Form.Next = c.QueryParam("next")
	return c.Render(http.StatusOK, PageLogin, data)
}

// Login runs the session strategy. Any rejection re-renders the form with the
// email preserved and one generic error.
func (h *FormHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")
	next := nextParam(c)

	res, err := h.strategy.Authenticate(ctx, email, password)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ChannelForm, metrics.ResultError).Inc()
		return err
	}
	if !res.Authenticated() {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ChannelForm, metrics.ResultRejected).Inc()
		data := newPageData(c, "Log in")
		data.Form = formValues{Email: email, Next: next}
		data.Errors = []string{formErrInvalidCredentials}
		return c.Render(http.StatusOK, PageLogin, data)
	}

	if err := h.sessions.Establish(ctx, res.Identity); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ChannelForm, metrics.ResultError).Inc()
		return err
	}

	metrics.LoginAttemptsTotal.WithLabelValues(metrics.ChannelForm, metrics.ResultSuccess).Inc()
	h.log.Info().Int64("user_id", res.Identity.ID).Str("channel", metrics.ChannelForm).Msg("user logged in")
	return c.Redirect(http.StatusFound, SafeRedirect(next))
}

// SignupPage renders the signup form. Signed-in users go straight to the
// dashboard.
func (h *FormHandler) SignupPage(c echo.Context) error {
	if middleware.CurrentUserFrom(c) != nil {
		return c.Redirect(http.StatusFound, DefaultRedirect)
	}
	data := newPageData(c, "Sign up")
	data.Form.Next = c.QueryParam("next")
	return c.Render(http.StatusOK, PageSignup, data)
}

// Signup validates the form, creates an operator account and signs it in.
// Every re-render keeps name, email and next and drops both passwords.
func (h *FormHandler) Signup(c echo.Context) error {
	var form signupForm
	if err := c.Bind(&form); err != nil {
		return h.renderSignup(c, form, []string{MsgInvalidPayload})
	}
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	if form.Next == "" {
		form.Next = c.QueryParam("next")
	}

	if err := c.Validate(&form); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			metrics.SignupsTotal.WithLabelValues(metrics.ChannelForm, metrics.ResultInvalid).Inc()
			return h.renderSignup(c, form, ve.Violations)
		}
		return err
	}

	start := time.Now()
	identity, err := h.auth.Register(c.Request().Context(), ports.RegisterInput{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	})
	switch {
	case err == nil:
		metrics.ObserveSince(metrics.SignupDuration, start)
	case errors.Is(err, domain.ErrEmailInUse):
		metrics.SignupsTotal.WithLabelValues(metrics.ChannelForm, metrics.ResultConflict).Inc()
		return h.renderSignup(c, form, []string{formErrEmailInUse})
	case errors.Is(err, domain.ErrInvalidInput):
		metrics.SignupsTotal.WithLabelValues(metrics.ChannelForm, metrics.ResultInvalid).Inc()
		return h.renderSignup(c, form, []string{formErrInvalidSignup})
	default:
		metrics.SignupsTotal.WithLabelValues(metrics.ChannelForm, metrics.ResultError).Inc()
		return err
	}

	if err := h.sessions.Establish(c.Request().Context(), identity); err != nil {
		return err
	}

	metrics.SignupsTotal.WithLabelValues(metrics.ChannelForm, metrics.ResultSuccess).Inc()
	return c.Redirect(http.StatusFound, SafeRedirect(form.Next))
}

func (h *FormHandler) renderSignup(c echo.Context, form signupForm, errs []string) error {
	data := newPageData(c, "Sign up")
	data.Form = formValues{Name: form.Name, Email: form.Email, Next: form.Next}
	data.Errors = errs
	return c.Render(http.StatusOK, PageSignup, data)
}

// Logout destroys the session, whether or not one existed.
func (h *FormHandler) Logout(c echo.Context) error {
	if err := h.sessions.Destroy(c.Request().Context()); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, middleware.LoginPath)
}

// nextParam reads next from the posted form, falling back to the query string.
func nextParam(c echo.Context) string {
	if next := c.Request().PostFormValue("next"); next != "" {
		return next
	}
	return c.QueryParam("next")
}
