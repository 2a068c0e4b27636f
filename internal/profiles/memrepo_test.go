package profiles

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devcampus/devcampus/internal/shared"
)

// memRepo mirrors the uniqueness constraints of the profiles table: the id
// primary key and the unique index on lower(email).
type memRepo struct {
	mu        sync.Mutex
	byID      map[string]Profile
	getErr    error
	insertErr error
	inserts   int
	// gate, when set, blocks every Get until it is closed.
	gate chan struct{}
}

func newMemRepo() *memRepo {
	return &memRepo{byID: make(map[string]Profile)}
}

func (m *memRepo) Get(ctx context.Context, id string) (Profile, error) {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return Profile{}, m.getErr
	}
	p, ok := m.byID[id]
	if !ok {
		return Profile{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memRepo) Insert(ctx context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.byID[p.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range m.byID {
		if strings.ToLower(existing.Email) == strings.ToLower(p.Email) {
			return ErrDuplicate
		}
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.byID[p.ID] = p
	return nil
}

func (m *memRepo) Update(ctx context.Context, id string, fields UpdateFields) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return Profile{}, shared.ErrNotFound
	}
	p = fields.apply(p)
	p.UpdatedAt = time.Now()
	m.byID[id] = p
	return p, nil
}

func (m *memRepo) List(ctx context.Context, limit, offset int) ([]Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Profile, 0, len(m.byID))
	for _, p := range m.byID {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memRepo) Overview(ctx context.Context) (Overview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var o Overview
	for _, p := range m.byID {
		o.Total++
		if p.Role == RoleAdmin {
			o.Admins++
		} else {
			o.Users++
		}
	}
	return o, nil
}

func (m *memRepo) ListEmails(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p.Email)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
