package gate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/devcampus/devcampus/internal/identity"
	"github.com/devcampus/devcampus/internal/profiles"
	"github.com/devcampus/devcampus/internal/shared"
)

// fakeProvider accepts access tokens it knows and refreshes the ones listed
// in refresh.
type fakeProvider struct {
	mu      sync.Mutex
	users   map[string]identity.Identity
	refresh map[string]identity.Token
	calls   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{users: map[string]identity.Identity{}, refresh: map[string]identity.Token{}}
}

func (f *fakeProvider) AuthCodeURL(state, challenge string) string {
	return "https://idp.test/authorize?state=" + state
}

func (f *fakeProvider) ExchangeCode(ctx context.Context, code, verifier string) (*identity.Identity, *identity.Token, error) {
	return nil, nil, identity.ErrNoSession
}

func (f *fakeProvider) GetUser(ctx context.Context, tok identity.Token) (*identity.Identity, *identity.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if next, ok := f.refresh[tok.RefreshToken]; ok && tok.RefreshToken != "" {
		ident, ok := f.users[next.AccessToken]
		if !ok {
			return nil, nil, identity.ErrNoSession
		}
		return &ident, &next, nil
	}
	ident, ok := f.users[tok.AccessToken]
	if !ok {
		return nil, nil, identity.ErrNoSession
	}
	return &ident, nil, nil
}

type fakeRoles struct {
	roles map[string]profiles.Role
	err   error
	calls int
}

func (f *fakeRoles) Role(ctx context.Context, id string) (profiles.Role, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	role, ok := f.roles[id]
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

type countingRecorder struct {
	counts map[string]int
}

func (c *countingRecorder) ObserveGateDecision(class, outcome string) {
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[class+"/"+outcome]++
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSessionManager(t *testing.T) *shared.SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSessionManager(client, "test_session", time.Hour, false)
}

func newSession(t *testing.T, sm *shared.SessionManager) *shared.Session {
	t.Helper()
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	return sess
}
