package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devcampus/devcampus/internal/auth"
	"github.com/devcampus/devcampus/internal/gate"
	"github.com/devcampus/devcampus/internal/identity"
	"github.com/devcampus/devcampus/internal/shared"
	"github.com/devcampus/devcampus/internal/view"
	_ "github.com/devcampus/devcampus/testing"
)

type stubProvider struct {
	ident *identity.Identity
	tok   *identity.Token
	err   error

	gotCode, gotVerifier string
}

func (s *stubProvider) AuthCodeURL(state, challenge string) string {
	return "https://idp.test/authorize?" + url.Values{"state": {state}, "code_challenge": {challenge}}.Encode()
}

func (s *stubProvider) ExchangeCode(ctx context.Context, code, verifier string) (*identity.Identity, *identity.Token, error) {
	s.gotCode, s.gotVerifier = code, verifier
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.ident, s.tok, nil
}

func (s *stubProvider) GetUser(ctx context.Context, tok identity.Token) (*identity.Identity, *identity.Token, error) {
	return s.ident, nil, nil
}

type stubBootstrapper struct {
	created bool
	calls   int
}

func (s *stubBootstrapper) Bootstrap(ctx context.Context, ident *identity.Identity) bool {
	s.calls++
	return s.created
}

type authFixture struct {
	router   http.Handler
	sessions *shared.SessionManager
	provider *stubProvider
	boot     *stubBootstrapper
	redis    *miniredis.Miniredis
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessions := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	templates, err := view.NewEngine()
	require.NoError(t, err)
	states, err := identity.NewStateSigner("state-secret")
	require.NoError(t, err)

	f := &authFixture{
		sessions: sessions,
		provider: &stubProvider{
			ident: &identity.Identity{ID: "u1", Email: "u1@x.com"},
			tok:   &identity.Token{AccessToken: "at", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour)},
		},
		boot:  &stubBootstrapper{},
		redis: mr,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(auth.HandlerConfig{
		Logger:       logger,
		Provider:     f.provider,
		States:       states,
		Bootstrapper: f.boot,
		Templates:    templates,
		Sessions:     sessions,
		CSRF:         shared.NewCSRFManager("csrfsecret"),
		Policy:       gate.Policy{DashboardPath: "/dashboard", HomePath: "/"},
	})
	r := chi.NewRouter()
	r.Use(sessions.Middleware(logger))
	r.Route("/auth", handler.MountRoutes)
	f.router = r
	return f
}

func (f *authFixture) do(t *testing.T, method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func cookieNamed(res *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func (f *authFixture) loadSession(t *testing.T, cookie *http.Cookie) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	return sess
}

// startSignIn returns the session cookie, the state cookie and the state
// value the provider would echo back.
func (f *authFixture) startSignIn(t *testing.T, next string) (*http.Cookie, *http.Cookie, string) {
	t.Helper()
	page := f.do(t, http.MethodGet, "/auth/login")
	require.Equal(t, http.StatusOK, page.Code)
	sessCookie := cookieNamed(page, "test_session")
	require.NotNil(t, sessCookie)

	target := "/auth/login/start"
	if next != "" {
		target += "?next=" + url.QueryEscape(next)
	}
	res := f.do(t, http.MethodGet, target, sessCookie)
	require.Equal(t, http.StatusFound, res.Code)
	stateCookie := cookieNamed(res, auth.StateCookieName)
	require.NotNil(t, stateCookie)

	loc, err := url.Parse(res.Header().Get("Location"))
	require.NoError(t, err)
	return sessCookie, stateCookie, loc.Query().Get("state")
}

func TestLoginPagePreservesNext(t *testing.T) {
	f := newAuthFixture(t)

	res := f.do(t, http.MethodGet, "/auth/login?next=%2Fadmin%2Fusers")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "/auth/login/start?next=%2Fadmin%2Fusers")

	res = f.do(t, http.MethodGet, "/auth/signup?next=https://evil.test")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Create your account")
	assert.NotContains(t, res.Body.String(), "evil.test")
}

func TestStartIssuesStateCookieAndPKCE(t *testing.T) {
	f := newAuthFixture(t)

	res := f.do(t, http.MethodGet, "/auth/login/start")
	require.Equal(t, http.StatusFound, res.Code)

	c := cookieNamed(res, auth.StateCookieName)
	require.NotNil(t, c)
	assert.Equal(t, "/auth", c.Path)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, int(identity.StateTTL/time.Second), c.MaxAge)

	loc, err := url.Parse(res.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.test", loc.Host)
	assert.NotEmpty(t, loc.Query().Get("state"))
	assert.NotEmpty(t, loc.Query().Get("code_challenge"))
}

func TestCallbackSignsInAndRotatesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.boot.created = true
	sessCookie, stateCookie, state := f.startSignIn(t, "/admin/users?page=2")

	res := f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), sessCookie, stateCookie)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/admin/users?page=2", res.Header().Get("Location"))
	assert.Equal(t, "abc", f.provider.gotCode)
	assert.NotEmpty(t, f.provider.gotVerifier)
	assert.Equal(t, 1, f.boot.calls)

	rotated := cookieNamed(res, "test_session")
	require.NotNil(t, rotated)
	assert.NotEqual(t, sessCookie.Value, rotated.Value)
	assert.False(t, f.redis.Exists("devcampus:session:"+sessCookie.Value))

	cleared := cookieNamed(res, auth.StateCookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	sess := f.loadSession(t, rotated)
	assert.Equal(t, "u1", sess.User())
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Welcome to DevCampus", flash.Message)
}

func TestCallbackDefaultsToDashboard(t *testing.T) {
	f := newAuthFixture(t)
	sessCookie, stateCookie, state := f.startSignIn(t, "")

	res := f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), sessCookie, stateCookie)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/dashboard", res.Header().Get("Location"))
}

func TestCallbackRejectsForgedState(t *testing.T) {
	f := newAuthFixture(t)
	sessCookie, stateCookie, _ := f.startSignIn(t, "")

	res := f.do(t, http.MethodGet, "/auth/callback?code=abc&state=forged", sessCookie, stateCookie)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	assert.Empty(t, f.provider.gotCode)

	sess := f.loadSession(t, cookieNamed(res, "test_session"))
	assert.Empty(t, sess.User())
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "error", flash.Kind)
}

func TestCallbackWithoutStateCookieFails(t *testing.T) {
	f := newAuthFixture(t)
	sessCookie, _, state := f.startSignIn(t, "")

	res := f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), sessCookie)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	assert.Zero(t, f.boot.calls)
}

func TestCallbackProviderErrorAndExchangeFailure(t *testing.T) {
	f := newAuthFixture(t)
	sessCookie, stateCookie, state := f.startSignIn(t, "")

	res := f.do(t, http.MethodGet, "/auth/callback?error=access_denied&state="+url.QueryEscape(state), sessCookie, stateCookie)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))

	sessCookie, stateCookie, state = f.startSignIn(t, "")
	f.provider.err = errors.New("invalid_grant")
	res = f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), sessCookie, stateCookie)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	assert.Zero(t, f.boot.calls)
}

func TestLogoutDestroysSession(t *testing.T) {
	f := newAuthFixture(t)
	sessCookie, stateCookie, state := f.startSignIn(t, "")
	res := f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), sessCookie, stateCookie)
	signedIn := cookieNamed(res, "test_session")
	require.NotNil(t, signedIn)

	res = f.do(t, http.MethodPost, "/auth/logout", signedIn)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
	assert.False(t, f.redis.Exists("devcampus:session:"+signedIn.Value))
	expired := cookieNamed(res, "test_session")
	require.NotNil(t, expired)
	assert.Negative(t, expired.MaxAge)
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"/dashboard":           "/dashboard",
		"/admin/users?page=2":  "/admin/users?page=2",
		"":                     "",
		"dashboard":            "",
		"//evil.test":          "",
		"/\\evil.test":         "",
		"https://evil.test/x":  "",
		"/ok\r\nSet-Cookie: x": "",
		"javascript:alert(1)":  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, auth.SafeNext(in), in)
	}
}
