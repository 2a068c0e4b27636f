package gate

import (
	"net/url"

	"github.com/devcampus/devcampus/internal/identity"
	"github.com/devcampus/devcampus/internal/profiles"
)

// Outcome is the verdict of an access decision.
type Outcome int

const (
	// Allow lets the request continue.
	Allow Outcome = iota
	// Redirect sends the client elsewhere.
	Redirect
)

func (o Outcome) String() string {
	if o == Redirect {
		return "redirect"
	}
	return "allow"
}

// Denial reasons carried in the redirect query.
const (
	ReasonAuthRequired  = "required"
	ReasonAdminRequired = "admin_required"
)

// Decision is the result of evaluating a request.
type Decision struct {
	Outcome Outcome
	Target  string
}

// DecisionInput collects everything one decision depends on.
type DecisionInput struct {
	Identity *identity.Identity
	Class    RouteClass
	// Role and RoleErr are the outcome of the stored role lookup and are
	// only meaningful when Identity is set.
	Role    profiles.Role
	RoleErr error
	// Path is the original request URI, offered back after sign-in.
	Path string
}

// Policy holds the static parameters of the access decision.
type Policy struct {
	SuperAdmin profiles.SuperAdmin
	// DashboardPath is where signed-in users land; empty falls back to HomePath.
	DashboardPath string
	HomePath      string
}

// Decide evaluates one request. It is pure and does no I/O.
func (p Policy) Decide(in DecisionInput) Decision {
	if in.Identity == nil {
		switch in.Class {
		case Protected, AdminOnly:
			return Decision{Outcome: Redirect, Target: p.signInTarget(in.Path)}
		default:
			return Decision{Outcome: Allow}
		}
	}

	switch in.Class {
	case AdminOnly:
		if p.IsAdmin(in.Identity, in.Role, in.RoleErr) {
			return Decision{Outcome: Allow}
		}
		return Decision{Outcome: Redirect, Target: withQuery(p.Landing(), "error", ReasonAdminRequired)}
	case AuthFlow:
		return Decision{Outcome: Redirect, Target: p.Landing()}
	default:
		return Decision{Outcome: Allow}
	}
}

// IsAdmin reports admin capability. A verified super admin email always
// qualifies; otherwise a failed role lookup never does.
func (p Policy) IsAdmin(ident *identity.Identity, role profiles.Role, roleErr error) bool {
	if ident == nil {
		return false
	}
	if p.SuperAdmin.Matches(ident) {
		return true
	}
	return roleErr == nil && role == profiles.RoleAdmin
}

func (p Policy) home() string {
	if p.HomePath == "" {
		return "/"
	}
	return p.HomePath
}

// Landing is where signed-in members are sent by default.
func (p Policy) Landing() string {
	if p.DashboardPath == "" {
		return p.home()
	}
	return p.DashboardPath
}

func (p Policy) signInTarget(next string) string {
	q := url.Values{}
	q.Set("auth", ReasonAuthRequired)
	if next != "" {
		q.Set("next", next)
	}
	return p.home() + "?" + q.Encode()
}

func withQuery(target, key, value string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
