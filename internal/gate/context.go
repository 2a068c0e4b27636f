package gate

import (
	"context"

	"github.com/devcampus/devcampus/internal/identity"
	"github.com/devcampus/devcampus/internal/profiles"
)

// Viewer is the resolved principal of the current request.
type Viewer struct {
	Identity identity.Identity `json:"identity"`
	Role     profiles.Role     `json:"role"`
	IsAdmin  bool              `json:"is_admin"`
}

type viewerContextKey struct{}

// ContextWithViewer stores the viewer in context.
func ContextWithViewer(ctx context.Context, v *Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey{}, v)
}

// ViewerFromContext returns the viewer resolved by the gate, or nil for
// anonymous requests.
func ViewerFromContext(ctx context.Context) *Viewer {
	v, _ := ctx.Value(viewerContextKey{}).(*Viewer)
	return v
}
