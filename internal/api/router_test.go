package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logiflow/logiflow/internal/api/handler"
	"github.com/logiflow/logiflow/internal/core/domain"
	"github.com/logiflow/logiflow/internal/core/service"
	"github.com/logiflow/logiflow/internal/infrastructure/http/handlers"
	"github.com/logiflow/logiflow/internal/infrastructure/session"
)

// memUsers is an in-memory UserRepository.
type memUsers struct {
	mu   sync.Mutex
	seq  int64
	byID map[int64]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[int64]*domain.User)}
}

func (r *memUsers) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = domain.NormalizeEmail(email)
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUsers) IsEmailTaken(ctx context.Context, email string, _ *int64) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	return err == nil, nil
}

func (r *memUsers) Create(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	if taken, _ := r.IsEmailTaken(ctx, in.Email, nil); taken {
		return nil, domain.ErrEmailInUse
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	now := time.Now().UTC()
	u := &domain.User{
		ID:           r.seq,
		Email:        domain.NormalizeEmail(in.Email),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: in.PasswordHash,
		Role:         domain.RoleOrDefault(in.Role),
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *memUsers) UpdateLastLogin(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	u.UpdatedAt = now
	cp := *u
	cp.PasswordHash = ""
	return &cp, nil
}

func (r *memUsers) delete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

type testServer struct {
	router *Router
	users  *memUsers
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithStore(t, memstore.New(), zerolog.Nop())
}

func newTestServerWithStore(t *testing.T, store scs.Store, log zerolog.Logger) *testServer {
	t.Helper()
	users := newMemUsers()
	passwords := service.NewPasswordService(4)
	tokens := service.NewTokenService(service.TokenConfig{Secret: []byte("test-secret"), TTL: time.Hour})
	strategy := service.NewSessionStrategy(users, passwords, log)
	reg := prometheus.NewRegistry()

	r, err := NewRouter(Deps{
		Log:      log,
		Auth:     service.NewAuthService(users, passwords, tokens, log),
		Strategy: strategy,
		Users:    strategy,
		Tokens:   tokens,
		Sessions: session.NewManager(store, session.Options{CookieName: "logiflow.sid", Lifetime: time.Hour}),
		Readiness: map[string]handlers.PingFunc{
			"mongodb": func(context.Context) error { return nil },
		},
		Registerer: reg,
		Gatherer:   reg,
	})
	require.NoError(t, err)
	return &testServer{router: r, users: users}
}

func (s *testServer) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.Echo.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *testServer) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, cookies...)
}

func (s *testServer) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

var csrfFieldRe = regexp.MustCompile(`name="csrf_token" value="([^"]*)"`)

// formToken loads page and returns its CSRF field value with the cookie that
// backs it.
func (s *testServer) formToken(t *testing.T, page string, cookies ...*http.Cookie) (string, *http.Cookie) {
	t.Helper()
	rec := s.get(page, cookies...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := csrfFieldRe.FindStringSubmatch(rec.Body.String())
	require.NotNil(t, m, "no csrf field on %s", page)
	token := html.UnescapeString(m[1])

	for _, c := range append(rec.Result().Cookies(), cookies...) {
		if c.Name == "logiflow.csrf" {
			return token, c
		}
	}
	t.Fatalf("no csrf cookie for %s", page)
	return "", nil
}

// submitForm posts form to path the way a browser would after loading page.
func (s *testServer) submitForm(t *testing.T, page, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	token, csrfCookie := s.formToken(t, page, cookies...)
	form.Set("csrf_token", token)
	return s.postForm(path, form, append(cookies, csrfCookie)...)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "logiflow.sid" && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response (headers: %v)", rec.Header())
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// tamper flips the first signature character.
func tamper(token string) string {
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}

type authBody struct {
	Token string           `json:"token"`
	User  *domain.Identity `json:"user"`
}

func signupAPI(t *testing.T, s *testServer, name, email, password string) authBody {
	t.Helper()
	rec := s.postJSON("/auth/api/signup", `{"name":"`+name+`","email":"`+email+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouter_APISignupAndLogin(t *testing.T) {
	s := newTestServer(t)

	created := signupAPI(t, s, "Ana", "Ana@Example.com", "secret1")
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "ana@example.com", created.User.Email)
	assert.Equal(t, domain.RoleOperator, created.User.Role)
	assert.NotNil(t, created.User.LastLoginAt, "signup stamps lastLoginAt")

	rec := s.postJSON("/auth/api/login", `{"email":"  ANA@example.com ","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	var login authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, created.User.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)
}

func TestRouter_APISignupErrors(t *testing.T) {
	s := newTestServer(t)
	signupAPI(t, s, "Ana", "ana@example.com", "secret1")

	rec := s.postJSON("/auth/api/signup", `{"name":"Other","email":" ANA@example.com","password":"secret2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, handler.MsgEmailInUse, decodeError(t, rec).Message)

	rec = s.postJSON("/auth/api/signup", `{"name":"","email":"x@example.com","password":"123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, handler.MsgInvalidPayload, body.Message)
	assert.Len(t, body.Errors, 2)

	rec = s.postJSON("/auth/api/signup", `{"name":"Eve","email":"eve@example.com","password":"`+strings.Repeat("é", 40)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"password must be at most 72 bytes"}, decodeError(t, rec).Errors)

	rec = s.postJSON("/auth/api/signup", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, handler.MsgInvalidPayload, decodeError(t, rec).Message)
}

func TestRouter_APILoginDoesNotRevealAccounts(t *testing.T) {
	s := newTestServer(t)
	signupAPI(t, s, "Ana", "ana@example.com", "secret1")

	wrongPassword := s.postJSON("/auth/api/login", `{"email":"ana@example.com","password":"nope123"}`)
	unknownEmail := s.postJSON("/auth/api/login", `{"email":"ghost@example.com","password":"nope123"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Code, unknownEmail.Code)
	assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.Equal(t, handler.MsgInvalidCredentials, decodeError(t, wrongPassword).Message)

	missing := s.postJSON("/auth/api/login", `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, missing.Code)
	assert.Equal(t, handler.MsgEmailPasswordRequired, decodeError(t, missing).Message)
}

func TestRouter_BearerProtectedFamilies(t *testing.T) {
	s := newTestServer(t)
	created := signupAPI(t, s, "Ana", "ana@example.com", "secret1")

	s.router.Resources["orders"].GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"ok": true})
	})

	rec := s.get("/orders")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, handler.MsgUnauthorized, decodeError(t, rec).Message)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rec = s.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.get("/orders?token=" + url.QueryEscape(created.Token))
	assert.Equal(t, http.StatusOK, rec.Code)

	tampered := tamper(created.Token)
	req = httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+tampered)
	rec = s.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, handler.MsgInvalidToken, decodeError(t, rec).Message)

	// A family no module has populated yet is still gated.
	rec = s.get("/invoices/42")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	req = httptest.NewRequest(http.MethodGet, "/invoices/42", nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rec = s.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A deleted account stops working before its token expires.
	s.users.delete(created.User.ID)
	req = httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rec = s.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, handler.MsgUnauthorized, decodeError(t, rec).Message)
}

func TestRouter_BrowserFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.get("/views")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login?next=%2Fviews", rec.Header().Get("Location"))

	rec = s.get("/auth/login?next=%2Fviews")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="next" value="/views"`)

	rec = s.submitForm(t, "/auth/signup", "/auth/signup", url.Values{
		"name": {"Ana"}, "email": {"ana@example.com"}, "password": {"secret1"}, "passwordConfirm": {"secret1"},
	})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/views", rec.Header().Get("Location"))
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)

	rec = s.get("/views", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome, Ana")

	rec = s.get("/auth/login", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/views", rec.Header().Get("Location"))

	rec = s.submitForm(t, "/views", "/auth/logout", url.Values{}, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))

	rec = s.get("/views", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestRouter_FormLogin(t *testing.T) {
	s := newTestServer(t)
	signupAPI(t, s, "Ana", "ana@example.com", "secret1")

	rec := s.submitForm(t, "/auth/login", "/auth/login", url.Values{"email": {"ana@example.com"}, "password": {"wrong12"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
	assert.Contains(t, rec.Body.String(), `value="ana@example.com"`)

	rec = s.submitForm(t, "/auth/login", "/auth/login", url.Values{"email": {"ghost@example.com"}, "password": {"wrong12"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")

	rec = s.submitForm(t, "/auth/login", "/auth/login?next=%2F%2Fevil.example", url.Values{"email": {"ana@example.com"}, "password": {"secret1"}})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/views", rec.Header().Get("Location"))

	rec = s.submitForm(t, "/auth/login", "/auth/login", url.Values{"email": {"ana@example.com"}, "password": {"secret1"}, "next": {"/views?tab=orders"}})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/views?tab=orders", rec.Header().Get("Location"))
	assert.NotEmpty(t, sessionCookie(t, rec).Value)
}

func TestRouter_FormsRequireCSRFToken(t *testing.T) {
	s := newTestServer(t)
	signupAPI(t, s, "Ana", "ana@example.com", "secret1")

	// A cross-site login attempt carries neither the token nor its cookie.
	rec := s.postForm("/auth/login", url.Values{"email": {"ana@example.com"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "CSRF_TOKEN_INVALID", decodeError(t, rec).Message)
	assert.Empty(t, rec.Header().Get("Location"))

	rec = s.postForm("/auth/signup", url.Values{
		"name": {"Eve"}, "email": {"eve@example.com"}, "password": {"secret1"}, "passwordConfirm": {"secret1"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, err := s.users.FindByEmail(context.Background(), "eve@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	// A forged logout leaves the session in place.
	rec = s.submitForm(t, "/auth/login", "/auth/login", url.Values{"email": {"ana@example.com"}, "password": {"secret1"}})
	require.Equal(t, http.StatusFound, rec.Code)
	cookie := sessionCookie(t, rec)
	_, csrfCookie := s.formToken(t, "/views", cookie)

	rec = s.postForm("/auth/logout", url.Values{"csrf_token": {"forged"}}, cookie, csrfCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusOK, s.get("/views", cookie).Code)

	// The JSON API is not cookie based and needs no token.
	rec = s.postJSON("/auth/api/login", `{"email":"ana@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_VanishedSessionUser(t *testing.T) {
	s := newTestServer(t)

	rec := s.submitForm(t, "/auth/signup", "/auth/signup", url.Values{
		"name": {"Ana"}, "email": {"ana@example.com"}, "password": {"secret1"}, "passwordConfirm": {"secret1"},
	})
	require.Equal(t, http.StatusFound, rec.Code)
	cookie := sessionCookie(t, rec)

	s.users.delete(1)

	rec = s.get("/views", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/auth/login?next="))
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.JSONEq(t, `{"ok":true,"name":"logiflow"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, s.get("/health").Code)
	assert.Equal(t, http.StatusOK, s.get("/health/ready").Code)

	rec = s.get("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "logiflow_http_requests_total")

	rec = s.get("/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, handler.MsgNotFound, decodeError(t, rec).Message)
}

// downStore is a session backend that is unreachable.
type downStore struct{}

func (downStore) Find(string) ([]byte, bool, error)      { return nil, false, errors.New("redis down") }
func (downStore) Commit(string, []byte, time.Time) error { return errors.New("redis down") }
func (downStore) Delete(string) error                    { return errors.New("redis down") }

func TestRouter_SessionStoreDown(t *testing.T) {
	var logs bytes.Buffer
	s := newTestServerWithStore(t, downStore{}, zerolog.New(&logs))
	created := signupAPI(t, s, "Ana", "ana@example.com", "secret1")
	s.router.Resources["orders"].GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"ok": true})
	})
	stale := &http.Cookie{Name: "logiflow.sid", Value: "stale-token"}

	// Bearer routes never need the session.
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rec := s.do(req, stale)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	// The browser area treats the visitor as signed out.
	rec = s.get("/views", stale)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login?next=%2Fviews", rec.Header().Get("Location"))

	rec = s.get("/auth/login", stale)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, logs.String(), "session load failed")
	assert.NotContains(t, rec.Body.String(), "Internal Server Error")
}
