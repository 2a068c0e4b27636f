// Package gate decides, for every inbound request, whether it may proceed or
// must be redirected, based on the resolved session and the route class.
package gate

import (
	"path"
	"sort"
	"strings"
)

// RouteClass is the access category of a request path.
type RouteClass int

const (
	// Public routes are open to everyone.
	Public RouteClass = iota
	// Protected routes require a session.
	Protected
	// AdminOnly routes require a session with admin capability.
	AdminOnly
	// AuthFlow routes are the sign-in pages; signed-in users are sent away.
	AuthFlow
)

func (c RouteClass) String() string {
	switch c {
	case Protected:
		return "protected"
	case AdminOnly:
		return "admin"
	case AuthFlow:
		return "auth"
	default:
		return "public"
	}
}

type routeRule struct {
	prefix string
	class  RouteClass
}

// routeTable is sorted longest prefix first.
var routeTable = sortRules([]routeRule{
	{prefix: "/admin", class: AdminOnly},
	{prefix: "/dashboard", class: Protected},
	{prefix: "/profile", class: Protected},
	{prefix: "/auth/login", class: AuthFlow},
	{prefix: "/auth/signup", class: AuthFlow},
	{prefix: "/auth/callback", class: AuthFlow},
})

func sortRules(rules []routeRule) []routeRule {
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].prefix) > len(rules[j].prefix)
	})
	return rules
}

// Classify maps a request path to its RouteClass using the longest matching
// prefix. Paths are cleaned first so dot segments and doubled slashes cannot
// move a request out of its class.
func Classify(p string) RouteClass {
	if p == "" {
		return Public
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)
	for _, rule := range routeTable {
		if strings.HasPrefix(p, rule.prefix) {
			return rule.class
		}
	}
	return Public
}
