package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenBoundToSession(t *testing.T) {
	m := NewCSRFManager("secret")
	ctx := context.Background()
	a := &Session{ID: "session-a"}
	b := &Session{ID: "session-b"}

	token, err := m.EnsureToken(ctx, a)
	require.NoError(t, err)
	again, err := m.EnsureToken(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, token, again)
	require.NoError(t, m.VerifyToken(ctx, a, token))

	b.Set(CSRFSessionKey, token)
	assert.ErrorIs(t, m.VerifyToken(ctx, b, token), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(ctx, a, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(ctx, a, token+"x"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(ctx, &Session{ID: "fresh"}, token), ErrCSRFTokenMissing)
}

func TestEnsureTokenReissuesAfterRenew(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "before"}
	token, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)

	sess.ID = "after"
	next, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, next)
}

func TestCSRFMiddleware(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "s1"}
	token, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)

	h := m.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	serve := func(req *http.Request) int {
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req.WithContext(ContextWithSession(req.Context(), sess)))
		return res.Code
	}

	assert.Equal(t, http.StatusNoContent, serve(httptest.NewRequest(http.MethodGet, "/", nil)))

	form := url.Values{CSRFFormField: {token}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusNoContent, serve(req))

	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set(CSRFHeader, token)
	assert.Equal(t, http.StatusNoContent, serve(req))

	assert.Equal(t, http.StatusForbidden, serve(httptest.NewRequest(http.MethodPost, "/", nil)))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestPagination(t *testing.T) {
	pg := NewPagination(5, 10, 23)
	assert.Equal(t, Pagination{Page: 3, PerPage: 10, Total: 23, TotalPages: 3}, pg)
	assert.Equal(t, 20, pg.Offset())
	assert.True(t, pg.HasPrev())
	assert.False(t, pg.HasNext())

	empty := NewPagination(0, 0, 0)
	assert.Equal(t, Pagination{Page: 1, PerPage: 20}, empty)
	assert.Zero(t, empty.Offset())
	assert.False(t, empty.HasNext())
}
