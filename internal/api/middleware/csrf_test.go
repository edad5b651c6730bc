package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var csrfSecret = []byte("test-secret-key-32-bytes-long!!!")

func runCSRF(t *testing.T, req *http.Request, log zerolog.Logger) (*httptest.ResponseRecorder, string, bool, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var token string
	called := false
	h := CSRFProtect(CSRFOptions{Secret: csrfSecret}, log)(func(c echo.Context) error {
		called = true
		token = CSRFToken(c)
		return c.NoContent(http.StatusOK)
	})
	err := h(c)
	return rec, token, called, err
}

func csrfCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", csrfCookieName)
	return nil
}

func assertForbidden(t *testing.T, err error) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusForbidden || he.Message != msgCSRFInvalid {
		t.Fatalf("expected 403 %s, got %v", msgCSRFInvalid, err)
	}
}

func TestCSRFProtect_GETMintsToken(t *testing.T) {
	rec, token, called, err := runCSRF(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), zerolog.Nop())
	if err != nil || !called {
		t.Fatalf("expected pass-through, err=%v called=%v", err, called)
	}
	if token == "" {
		t.Fatal("expected a token for the template")
	}
	cookie := csrfCookieFrom(t, rec)
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode || cookie.Path != "/" {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}
}

func TestCSRFProtect_BlocksPOSTWithoutToken(t *testing.T) {
	var logs bytes.Buffer
	form := url.Values{"email": {"ana@example.com"}, "password": {"secret1"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, _, called, err := runCSRF(t, req, zerolog.New(&logs))
	if called {
		t.Fatal("handler must not run without a token")
	}
	assertForbidden(t, err)
	if !strings.Contains(logs.String(), "csrf check failed") {
		t.Fatalf("expected a warning, got %q", logs.String())
	}
}

func TestCSRFProtect_AcceptsFormAndHeaderToken(t *testing.T) {
	rec, token, _, err := runCSRF(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), zerolog.Nop())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	cookie := csrfCookieFrom(t, rec)

	form := url.Values{CSRFFieldName: {token}, "email": {"ana@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	if _, _, called, err := runCSRF(t, req, zerolog.Nop()); err != nil || !called {
		t.Fatalf("form token rejected: err=%v called=%v", err, called)
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set(CSRFHeader, token)
	req.AddCookie(cookie)
	if _, _, called, err := runCSRF(t, req, zerolog.Nop()); err != nil || !called {
		t.Fatalf("header token rejected: err=%v called=%v", err, called)
	}
}

func TestCSRFProtect_RejectsTokenFromAnotherCookie(t *testing.T) {
	_, token, _, _ := runCSRF(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), zerolog.Nop())
	other, _, _, _ := runCSRF(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set(CSRFHeader, token)
	req.AddCookie(csrfCookieFrom(t, other))

	_, _, called, err := runCSRF(t, req, zerolog.Nop())
	if called {
		t.Fatal("handler must not run with a foreign token")
	}
	assertForbidden(t, err)
}

func TestCSRFToken_OutsideMiddleware(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if got := CSRFToken(c); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}
