// Package profiles owns the durable member record kept for every identity
// that has signed in, including the member's role.
package profiles

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/devcampus/devcampus/internal/identity"
	"github.com/devcampus/devcampus/internal/shared"
)

// Role is the access level stored on a profile.
type Role string

const (
	// RoleUser is the default role for new members.
	RoleUser Role = "user"
	// RoleAdmin grants access to the admin console.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ErrDuplicate is returned by Insert when a profile with the same id or email exists.
var ErrDuplicate = fmt.Errorf("profiles: profile already exists: %w", shared.ErrConflict)

// ErrInvalidRole rejects role updates outside the known set.
var ErrInvalidRole = fmt.Errorf("profiles: invalid role: %w", shared.ErrInvalidInput)

// Profile is the durable record about an identity.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateFields lists the columns an update may change. Nil fields are left alone.
type UpdateFields struct {
	FullName  *string
	AvatarURL *string
	// ClearAvatar sets avatar_url to NULL and wins over AvatarURL.
	ClearAvatar bool
	Role        *Role
}

// Overview summarises the member base for the admin console.
type Overview struct {
	Total  int
	Admins int
	Users  int
}

// SuperAdmin is the single designated identity that always has admin
// capability, independent of the stored role.
type SuperAdmin struct {
	email string
}

// NewSuperAdmin binds the designated email address. A non-ASCII address
// never matches anything.
func NewSuperAdmin(email string) SuperAdmin {
	normalized, _ := asciiLower(strings.TrimSpace(email))
	return SuperAdmin{email: normalized}
}

// Is reports whether email is the designated address. Only ASCII letters are
// compared case-insensitively; any other byte must match exactly.
func (s SuperAdmin) Is(email string) bool {
	if s.email == "" {
		return false
	}
	normalized, ok := asciiLower(email)
	return ok && normalized == s.email
}

// Matches reports whether ident is the super admin. The provider must have
// verified the email address.
func (s SuperAdmin) Matches(ident *identity.Identity) bool {
	return ident != nil && ident.EmailVerified && s.Is(ident.Email)
}

// Email returns the normalised designated address.
func (s SuperAdmin) Email() string {
	return s.email
}

func asciiLower(email string) (string, bool) {
	if email == "" {
		return "", false
	}
	for i := 0; i < len(email); i++ {
		if email[i] >= utf8.RuneSelf {
			return "", false
		}
	}
	return strings.ToLower(email), true
}
