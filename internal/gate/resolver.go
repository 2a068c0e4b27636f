package gate

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/devcampus/devcampus/internal/identity"
	"github.com/devcampus/devcampus/internal/shared"
)

// authSessionKey holds the provider token and identity snapshot in the session.
const authSessionKey = "auth"

type authRecord struct {
	Token    identity.Token    `json:"token"`
	Identity identity.Identity `json:"identity"`
}

// SignIn binds ident and its token to the session.
func SignIn(sess *shared.Session, ident *identity.Identity, tok *identity.Token) error {
	if sess == nil || ident == nil || tok == nil {
		return identity.ErrNoSession
	}
	data, err := json.Marshal(authRecord{Token: *tok, Identity: *ident})
	if err != nil {
		return err
	}
	sess.SetUser(ident.ID)
	sess.Set(authSessionKey, string(data))
	return nil
}

// SignOut removes the auth material from the session.
func SignOut(sess *shared.Session) {
	if sess == nil {
		return
	}
	sess.Delete(authSessionKey)
	sess.SetUser("")
}

func loadRecord(sess *shared.Session) (*authRecord, bool) {
	if sess == nil {
		return nil, false
	}
	raw := sess.Get(authSessionKey)
	if raw == "" {
		return nil, false
	}
	var rec authRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// Resolver turns the request session into an identity.
type Resolver struct {
	provider identity.Provider
	logger   *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(provider identity.Provider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: provider, logger: logger}
}

// Resolve returns the identity bound to sess or nil. It never fails. Any
// credential the provider rejects means "no session" and the stale material
// is cleared. When the provider rotates the token, the
// new token is written back into the session so the next commit carries it.
func (r *Resolver) Resolve(ctx context.Context, sess *shared.Session) *identity.Identity {
	rec, ok := loadRecord(sess)
	if !ok {
		if sess != nil && sess.Get(authSessionKey) != "" {
			SignOut(sess)
		}
		return nil
	}

	ident, rotated, err := r.provider.GetUser(ctx, rec.Token)
	if err != nil || ident == nil {
		r.logger.Debug("session credentials rejected", slog.String("identity", rec.Identity.ID), slog.Any("error", err))
		SignOut(sess)
		return nil
	}
	if ident.ID != rec.Identity.ID {
		r.logger.Warn("session identity mismatch", slog.String("stored", rec.Identity.ID), slog.String("provider", ident.ID))
		SignOut(sess)
		return nil
	}

	tok := rec.Token
	if rotated != nil {
		tok = *rotated
	}
	if rotated != nil || *ident != rec.Identity {
		if err := SignIn(sess, ident, &tok); err != nil {
			r.logger.Warn("store rotated session", slog.Any("error", err))
		}
	}
	return ident
}
