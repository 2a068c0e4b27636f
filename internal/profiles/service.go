package profiles

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devcampus/devcampus/internal/shared"
)

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps profile business rules.
type Service struct {
	repo    Repository
	auditor Auditor
	logger  *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

// Role returns the stored role for the identity. A missing profile is
// reported as shared.ErrNotFound.
func (s *Service) Role(ctx context.Context, id string) (Role, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Role, nil
}

// Get returns the profile for id.
func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	return s.repo.Get(ctx, id)
}

// ProfileInput is the self-service editable part of a profile.
type ProfileInput struct {
	FullName  string `validate:"required,max=120"`
	AvatarURL string `validate:"omitempty,url,max=512"`
}

// UpdateProfile stores the member's own edits.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileInput) (Profile, error) {
	fields := UpdateFields{FullName: &in.FullName}
	if in.AvatarURL == "" {
		fields.ClearAvatar = true
	} else {
		fields.AvatarURL = &in.AvatarURL
	}
	return s.repo.Update(ctx, id, fields)
}

// SetRole changes the role of a member and records who did it.
func (s *Service) SetRole(ctx context.Context, actorID, id string, role Role) (Profile, error) {
	if !role.Valid() {
		return Profile{}, ErrInvalidRole
	}
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	updated, err := s.repo.Update(ctx, id, UpdateFields{Role: &role})
	if err != nil {
		return Profile{}, err
	}
	if s.auditor != nil {
		entry := shared.AuditLog{
			ActorID:  actorID,
			Action:   "profile.role.update",
			Entity:   "profile",
			EntityID: id,
			Meta:     map[string]any{"from": string(before.Role), "to": string(role)},
		}
		if err := s.auditor.Record(ctx, entry); err != nil {
			s.logger.Warn("audit role update", slog.Any("error", err))
		}
	}
	return updated, nil
}

// List returns one page of profiles with pagination metadata.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Profile, shared.Pagination, error) {
	overview, err := s.repo.Overview(ctx)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("profiles: count: %w", err)
	}
	pg := shared.NewPagination(page, perPage, overview.Total)
	items, err := s.repo.List(ctx, pg.PerPage, pg.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("profiles: list: %w", err)
	}
	return items, pg, nil
}

// Overview returns member counts.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	return s.repo.Overview(ctx)
}

// Emails returns every member email address.
func (s *Service) Emails(ctx context.Context) ([]string, error) {
	return s.repo.ListEmails(ctx)
}
