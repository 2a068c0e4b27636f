package app

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devcampus/devcampus/internal/gate"
	"github.com/devcampus/devcampus/internal/observability"
	"github.com/devcampus/devcampus/internal/shared"
)

func TestInTestMode(t *testing.T) {
	t.Setenv(TestModeEnv, "1")
	assert.True(t, InTestMode())
	t.Setenv(TestModeEnv, "false")
	assert.False(t, InTestMode())
	t.Setenv(TestModeEnv, "")
	assert.False(t, InTestMode())
}

func newTestRouter(t *testing.T, handler http.HandlerFunc) (http.Handler, *observability.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	metrics := observability.NewMetrics()
	cfg := &Config{AppRequestTimeout: time.Second}
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	g := gate.New(gate.Config{
		Resolver: gate.NewResolver(nil, nil),
		Policy:   gate.Policy{DashboardPath: "/dashboard", HomePath: "/"},
		Recorder: metrics,
	})

	r := NewRouter(RouterParams{
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    shared.NewCSRFManager("csrf"),
		Gate:           g,
		Metrics:        metrics,
	})
	mux := http.NewServeMux()
	mux.Handle("/", r)
	if handler != nil {
		mux.Handle("/stack-check", stackOnly(t, cfg, sessions, g, handler))
	}
	return mux, metrics
}

// stackOnly wraps handler with the middleware chain alone.
func stackOnly(t *testing.T, cfg *Config, sessions *shared.SessionManager, g *gate.Gate, handler http.Handler) http.Handler {
	t.Helper()
	h := handler
	stack := MiddlewareStack(MiddlewareConfig{
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    shared.NewCSRFManager("csrf"),
		Gate:           g.Middleware,
	})
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}
	return h
}

func TestRouterServesHealthAndStatic(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "public, max-age=3600", res.Header().Get("Cache-Control"))
	assert.Empty(t, res.Result().Cookies(), "static assets must not open sessions")
}

func TestRouterGatesAnonymousAdmin(t *testing.T) {
	router, metrics := newTestRouter(t, nil)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	require.Equal(t, http.StatusSeeOther, res.Code)
	loc, err := url.Parse(res.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)
	assert.Equal(t, "/admin/users", loc.Query().Get("next"))
	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `devcampus_gate_decisions_total{class="admin",outcome="redirect"} 1`)
}

func TestCSRFRejectsUnsafeMethodsWithoutToken(t *testing.T) {
	reached := false
	router, _ := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})

	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/stack-check", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.False(t, reached)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/stack-check", nil))
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.True(t, reached)
	assert.NotEmpty(t, res.Result().Cookies())
}
