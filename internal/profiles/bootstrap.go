package profiles

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/devcampus/devcampus/internal/identity"
	"github.com/devcampus/devcampus/internal/shared"
)

// WelcomeNotifier is told about profiles created on first sign-in.
type WelcomeNotifier interface {
	Welcome(ctx context.Context, p Profile) error
}

// Bootstrapper ensures a profile exists for a freshly authenticated identity.
type Bootstrapper struct {
	repo       Repository
	superAdmin SuperAdmin
	welcome    WelcomeNotifier
	logger     *slog.Logger
}

// NewBootstrapper constructs a Bootstrapper. welcome may be nil.
func NewBootstrapper(repo Repository, superAdmin SuperAdmin, welcome WelcomeNotifier, logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{repo: repo, superAdmin: superAdmin, welcome: welcome, logger: logger}
}

// Bootstrap creates the profile for ident when it does not exist yet and
// reports whether this call created it. Failures are logged and never
// returned: profile creation must not block sign-in.
func (b *Bootstrapper) Bootstrap(ctx context.Context, ident *identity.Identity) bool {
	if ident == nil || ident.ID == "" {
		return false
	}
	logger := b.logger.With(slog.String("identity", ident.ID))

	_, err := b.repo.Get(ctx, ident.ID)
	if err == nil {
		return false
	}
	if !errors.Is(err, shared.ErrNotFound) {
		logger.Error("profile lookup during bootstrap", slog.Any("error", err))
		return false
	}

	p := b.newProfile(ident)
	if err := b.repo.Insert(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			b.checkDuplicate(ctx, logger, ident)
			return false
		}
		logger.Error("profile create", slog.Any("error", err))
		return false
	}
	logger.Info("profile created", slog.String("role", string(p.Role)))

	if b.welcome != nil {
		if err := b.welcome.Welcome(ctx, p); err != nil {
			logger.Warn("welcome notification", slog.Any("error", err))
		}
	}
	return true
}

// checkDuplicate separates a concurrent first sign-in, which left a profile
// behind, from an email already owned by another identity, which did not.
func (b *Bootstrapper) checkDuplicate(ctx context.Context, logger *slog.Logger, ident *identity.Identity) {
	_, err := b.repo.Get(ctx, ident.ID)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotFound):
		logger.Error("profile create: email already belongs to another profile", slog.String("email", ident.Email))
	default:
		logger.Error("profile lookup after duplicate", slog.Any("error", err))
	}
}

func (b *Bootstrapper) newProfile(ident *identity.Identity) Profile {
	role := RoleUser
	if b.superAdmin.Matches(ident) {
		role = RoleAdmin
	}
	return Profile{
		ID:        ident.ID,
		Email:     ident.Email,
		FullName:  fullName(ident),
		AvatarURL: avatarURL(ident),
		Role:      role,
	}
}

func fullName(ident *identity.Identity) string {
	for _, candidate := range []string{ident.DisplayName, ident.Name} {
		if name := strings.TrimSpace(candidate); name != "" {
			return norm.NFC.String(name)
		}
	}
	local, _, _ := strings.Cut(ident.Email, "@")
	return local
}

func avatarURL(ident *identity.Identity) *string {
	for _, candidate := range []string{ident.AvatarURL, ident.Picture} {
		if url := strings.TrimSpace(candidate); url != "" {
			return &url
		}
	}
	return nil
}
