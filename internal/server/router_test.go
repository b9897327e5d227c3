package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/dreamnest/internal/config"
	"github.com/vedran77/dreamnest/internal/logging"
	"github.com/vedran77/dreamnest/internal/metrics"
	"github.com/vedran77/dreamnest/internal/repository/repotest"
	"github.com/vedran77/dreamnest/internal/service"
	"github.com/vedran77/dreamnest/internal/session"
	"github.com/vedran77/dreamnest/internal/transport/http/middleware"
	"github.com/vedran77/dreamnest/internal/transport/ws"
)

const password = "Passw0rd!"

type fakeDB struct{ err error }

func (f *fakeDB) Ping(context.Context) error { return f.err }

type testApp struct {
	handler http.Handler
	db      *fakeDB
}

func newTestConfig() *config.Config {
	return &config.Config{
		Env:                "test",
		JWTSecret:          "test-secret",
		JWTTTL:             time.Hour,
		EnableAuth:         true,
		EnableDreams:       true,
		CORSAllowedOrigins: []string{"*"},
		LoginRatePerMinute: 60,
		LoginRateBurst:     100,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *testApp {
	t.Helper()

	log := logging.Discard()
	m := metrics.New()
	users := repotest.NewUsers()
	dreams := repotest.NewDreams()

	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL, session.NewMemoryStore())
	authService := service.NewAuthService(users, tokens)
	dreamService := service.NewDreamService(dreams, users)
	hub := ws.NewHub(m, log)
	dreamService.SetNotifier(ws.NewHubNotifier(hub))

	db := &fakeDB{}
	h, err := NewRouter(Deps{
		Config:       cfg,
		AuthService:  authService,
		DreamService: dreamService,
		Hub:          hub,
		LoginLimiter: middleware.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginRateBurst, log),
		DB:           db,
		Metrics:      m,
		Log:          log,
	})
	require.NoError(t, err)

	return &testApp{handler: h, db: db}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(data))
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

type authBody struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Password *string   `json:"password"`
	Token    string    `json:"token"`
}

func (a *testApp) register(t *testing.T, username string) authBody {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRegister(t *testing.T) {
	app := newTestApp(t, newTestConfig())

	alice := app.register(t, "alice")
	assert.NotEqual(t, uuid.Nil, alice.ID)
	assert.Equal(t, "alice", alice.Username)
	assert.Equal(t, "alice@example.com", alice.Email)
	assert.Nil(t, alice.Password, "password hash must never be serialised")
	assert.NotEmpty(t, alice.Token)

	rec := app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "new@example.com", "password": password,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "USERNAME_TAKEN", decode[map[string]any](t, rec)["code"])

	rec = app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "al", "email": "bad", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[map[string]any](t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	app := newTestApp(t, newTestConfig())
	long := "Aa1!" + strings.Repeat("x", 80)

	rec := app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": long,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Contains(t, body["fields"], "password")

	rec = app.form(t, "/register", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {long},
		"confirm_password": {long},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Password must be at most 72 bytes")
}

func TestLogin(t *testing.T) {
	app := newTestApp(t, newTestConfig())
	alice := app.register(t, "alice")

	for _, ident := range []string{"alice", "alice@example.com"} {
		rec := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"identifier": ident, "password": password,
		})
		require.Equal(t, http.StatusOK, rec.Code, ident)
		body := decode[authBody](t, rec)
		assert.Equal(t, alice.ID, body.ID)
		assert.NotEmpty(t, body.Token)
	}

	wrongPassword := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "alice", "password": "Wr0ngPass!",
	})
	unknownUser := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "nobody", "password": password,
	})
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestLoginRateLimited(t *testing.T) {
	cfg := newTestConfig()
	cfg.LoginRateBurst = 2
	cfg.LoginRatePerMinute = 1
	app := newTestApp(t, cfg)

	creds := map[string]string{"identifier": "nobody", "password": password}
	for range 2 {
		assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodPost, "/api/auth/login", "", creds).Code)
	}
	rec := app.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestMeRefreshLogout(t *testing.T) {
	app := newTestApp(t, newTestConfig())
	alice := app.register(t, "alice")

	rec := app.do(t, http.MethodGet, "/api/auth/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[authBody](t, rec).Username)

	rec = app.do(t, http.MethodPost, "/api/auth/refresh", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := decode[authBody](t, rec).Token
	require.NotEmpty(t, fresh)

	// The refreshed-away token is revoked.
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/api/auth/me", alice.Token, nil).Code)

	rec = app.do(t, http.MethodPost, "/api/auth/logout", fresh, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/api/auth/me", fresh, nil).Code)
}

func TestDreamsRequireToken(t *testing.T) {
	app := newTestApp(t, newTestConfig())

	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodPost, "/api/dreams", "", map[string]string{"content": "x"}).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/api/dreams?userId="+uuid.NewString(), "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodDelete, "/api/dreams/"+uuid.NewString(), "garbage", nil).Code)
}

func TestDreamLifecycle(t *testing.T) {
	app := newTestApp(t, newTestConfig())
	alice := app.register(t, "alice")

	var ids []uuid.UUID
	for _, content := range []string{"first", "second"} {
		rec := app.do(t, http.MethodPost, "/api/dreams", alice.Token, map[string]any{"content": content, "userId": alice.ID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode[map[string]any](t, rec)
		assert.Equal(t, content, body["content"])
		assert.Equal(t, alice.ID.String(), body["userId"])
		assert.NotEmpty(t, body["createdAt"])
		ids = append(ids, uuid.MustParse(body["id"].(string)))
		// Keep creation timestamps distinct.
		time.Sleep(2 * time.Millisecond)
	}

	rec := app.do(t, http.MethodGet, "/api/dreams?userId="+alice.ID.String(), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0]["content"])
	assert.Equal(t, "first", list[1]["content"])

	rec = app.do(t, http.MethodDelete, "/api/dreams/"+ids[0].String(), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dream deleted successfully", decode[map[string]string](t, rec)["message"])

	rec = app.do(t, http.MethodDelete, "/api/dreams/"+ids[0].String(), alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/dreams?userId="+alice.ID.String(), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
}

func TestDreamValidationAndOwnership(t *testing.T) {
	app := newTestApp(t, newTestConfig())
	alice := app.register(t, "alice")
	bob := app.register(t, "bob")

	rec := app.do(t, http.MethodPost, "/api/dreams", alice.Token, map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_CONTENT", decode[map[string]string](t, rec)["code"])

	rec = app.do(t, http.MethodPost, "/api/dreams", alice.Token, map[string]any{"content": "x", "userId": bob.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/dreams", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User ID is required", decode[map[string]string](t, rec)["error"])

	rec = app.do(t, http.MethodGet, "/api/dreams?userId="+bob.ID.String(), alice.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/dreams", bob.Token, map[string]string{"content": "bob's dream"})
	require.Equal(t, http.StatusOK, rec.Code)
	bobDream := decode[map[string]any](t, rec)["id"].(string)

	rec = app.do(t, http.MethodDelete, "/api/dreams/"+bobDream, alice.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodDelete, "/api/dreams/not-a-uuid", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, newTestConfig())

	rec := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	app.db.err = errors.New("connection refused")
	rec = app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, newTestConfig())
	app.register(t, "alice")

	rec := app.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dreamnest_http_requests_total{method="POST",path="POST /api/auth/register",status="201"} 1`)
}

func TestFeatureFlags(t *testing.T) {
	cfg := newTestConfig()
	cfg.EnableDreams = false
	app := newTestApp(t, cfg)
	alice := app.register(t, "alice")

	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/dreams?userId="+alice.ID.String(), alice.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/dreams", "", nil).Code)

	// Without dream pages a web login lands on the home page.
	rec := app.form(t, "/login", url.Values{"identifier": {"alice"}, "password": {password}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cookie := sessionCookie(t, rec)

	rec = app.page(t, "/login", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = app.page(t, "/", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `href="/dreams"`)

	cfg = newTestConfig()
	cfg.EnableAuth = false
	app = newTestApp(t, cfg)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{}).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/login", "", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t, newTestConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/dreams", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

// Web pages

func (a *testApp) form(t *testing.T, path string, values url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) page(t *testing.T, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestWebGating(t *testing.T) {
	app := newTestApp(t, newTestConfig())

	rec := app.page(t, "/dreams", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = app.page(t, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/register"`)

	assert.Equal(t, http.StatusNotFound, app.page(t, "/nope", nil).Code)

	rec = app.page(t, "/static/style.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
}

func TestWebRegisterAndDreams(t *testing.T) {
	app := newTestApp(t, newTestConfig())

	rec := app.form(t, "/signup", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {password},
		"confirm_password": {"different"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match")

	rec = app.form(t, "/register", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {password},
		"confirm_password": {password},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dreams", rec.Header().Get("Location"))
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Positive(t, cookie.MaxAge)

	// Signed in visitors skip the login form.
	rec = app.page(t, "/login", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dreams", rec.Header().Get("Location"))

	rec = app.form(t, "/dreams", url.Values{"content": {"I could <fly>"}}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = app.page(t, "/dreams", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "I could &lt;fly&gt;")

	rec = app.form(t, "/dreams", url.Values{"content": {"  "}}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dream content is required")

	rec = app.form(t, "/dreams/"+uuid.NewString()+"/delete", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebLoginAndLogout(t *testing.T) {
	app := newTestApp(t, newTestConfig())
	app.register(t, "alice")

	rec := app.form(t, "/login", url.Values{"identifier": {"alice"}, "password": {"Wr0ngPass!"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email/username or password")

	rec = app.form(t, "/login", url.Values{"identifier": {"alice@example.com"}, "password": {password}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookie := sessionCookie(t, rec)

	rec = app.form(t, "/logout", nil, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	// The revoked cookie no longer opens the dreams page.
	rec = app.page(t, "/dreams", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}
