package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/devcampus/devcampus/internal/profiles"
	"github.com/devcampus/devcampus/internal/shared"
)

// RoleLookup returns the stored role of an identity.
type RoleLookup interface {
	Role(ctx context.Context, id string) (profiles.Role, error)
}

// DecisionRecorder counts decisions for monitoring.
type DecisionRecorder interface {
	ObserveGateDecision(class, outcome string)
}

// Gate is the single authority on who may reach which route.
type Gate struct {
	resolver *Resolver
	roles    RoleLookup
	policy   Policy
	recorder DecisionRecorder
	logger   *slog.Logger
}

// Config groups the dependencies of a Gate.
type Config struct {
	Resolver *Resolver
	Roles    RoleLookup
	Policy   Policy
	Recorder DecisionRecorder
	Logger   *slog.Logger
}

// New constructs a Gate.
func New(cfg Config) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{resolver: cfg.Resolver, roles: cfg.Roles, policy: cfg.Policy, recorder: cfg.Recorder, logger: logger}
}

// Policy exposes the decision parameters.
func (g *Gate) Policy() Policy {
	return g.policy
}

// Evaluate resolves the session of r and decides on it. The viewer is nil
// for anonymous requests.
func (g *Gate) Evaluate(r *http.Request) (Decision, *Viewer) {
	ctx := r.Context()
	class := Classify(r.URL.Path)
	in := DecisionInput{Class: class, Path: r.URL.RequestURI()}

	ident := g.resolver.Resolve(ctx, shared.SessionFromContext(ctx))
	var viewer *Viewer
	if ident != nil {
		in.Identity = ident
		in.Role, in.RoleErr = g.roles.Role(ctx, ident.ID)
		if in.RoleErr != nil {
			level := slog.LevelWarn
			if errors.Is(in.RoleErr, shared.ErrNotFound) {
				level = slog.LevelInfo
			}
			g.logger.Log(ctx, level, "role lookup failed",
				slog.String("identity", ident.ID),
				slog.String("class", class.String()),
				slog.Any("error", in.RoleErr))
		}
		role := in.Role
		if in.RoleErr != nil || !role.Valid() {
			role = profiles.RoleUser
		}
		viewer = &Viewer{
			Identity: *ident,
			Role:     role,
			IsAdmin:  g.policy.IsAdmin(ident, in.Role, in.RoleErr),
		}
	}

	d := g.policy.Decide(in)
	if g.recorder != nil {
		g.recorder.ObserveGateDecision(class.String(), d.Outcome.String())
	}
	return d, viewer
}

// Middleware runs the gate on every request. Allowed requests continue with
// the viewer in context; denied ones get a 303 to the decision target.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, viewer := g.Evaluate(r)
		if d.Outcome == Redirect {
			http.Redirect(w, r, d.Target, http.StatusSeeOther)
			return
		}
		if viewer != nil {
			r = r.WithContext(ContextWithViewer(r.Context(), viewer))
		}
		next.ServeHTTP(w, r)
	})
}
