package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devcampus/devcampus/internal/platform/db"
	"github.com/devcampus/devcampus/internal/shared"
)

// Repository defines persistence operations for profiles.
type Repository interface {
	Get(ctx context.Context, id string) (Profile, error)
	Insert(ctx context.Context, p Profile) error
	Update(ctx context.Context, id string, fields UpdateFields) (Profile, error)
	List(ctx context.Context, limit, offset int) ([]Profile, error)
	Overview(ctx context.Context) (Overview, error)
	ListEmails(ctx context.Context) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const profileColumns = `id, email, full_name, avatar_url, role, created_at, updated_at`

// Get fetches a profile by identity id.
func (r *PGRepository) Get(ctx context.Context, id string) (Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// Insert creates a profile. Unique violations map to ErrDuplicate.
func (r *PGRepository) Insert(ctx context.Context, p Profile) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (id, email, full_name, avatar_url, role) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Email, p.FullName, p.AvatarURL, string(p.Role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Update applies fields to the profile under a row lock and returns the result.
func (r *PGRepository) Update(ctx context.Context, id string, fields UpdateFields) (Profile, error) {
	var updated Profile
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		next := fields.apply(current)
		updated, err = scanProfile(tx.QueryRow(ctx,
			`UPDATE profiles SET full_name = $2, avatar_url = $3, role = $4, updated_at = NOW() WHERE id = $1 RETURNING `+profileColumns,
			id, next.FullName, next.AvatarURL, string(next.Role)))
		return err
	})
	if err != nil {
		return Profile{}, fmt.Errorf("profiles: update %s: %w", id, err)
	}
	return updated, nil
}

// List returns profiles ordered by creation time, newest first.
func (r *PGRepository) List(ctx context.Context, limit, offset int) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Overview counts members per role.
func (r *PGRepository) Overview(ctx context.Context) (Overview, error) {
	var o Overview
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE role = 'admin'), COUNT(*) FILTER (WHERE role = 'user') FROM profiles`).
		Scan(&o.Total, &o.Admins, &o.Users)
	return o, err
}

// ListEmails returns every member email address.
func (r *PGRepository) ListEmails(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT email FROM profiles ORDER BY email`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanProfile(row pgx.Row) (Profile, error) {
	var (
		p    Profile
		role string
	)
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Profile{}, err
	}
	p.Role = Role(role)
	return p, nil
}

func (f UpdateFields) apply(p Profile) Profile {
	if f.FullName != nil {
		p.FullName = *f.FullName
	}
	if f.ClearAvatar {
		p.AvatarURL = nil
	} else if f.AvatarURL != nil {
		avatar := *f.AvatarURL
		p.AvatarURL = &avatar
	}
	if f.Role != nil {
		p.Role = *f.Role
	}
	return p
}

var _ Repository = (*PGRepository)(nil)
