package postgres

import (
	"context"
	"time"
)

const DefaultLeaseName = "reminder_pass"

// LeaseRepository stores a single named pass lease in reminder_pass_leases.
type LeaseRepository struct {
	db   DB
	name string
}

func NewLeaseRepository(db DB, name string) *LeaseRepository {
	if name == "" {
		name = DefaultLeaseName
	}
	return &LeaseRepository{
		db:   db,
		name: name,
	}
}

func (l *LeaseRepository) Acquire(ctx context.Context, holder string, ttl time.Duration, now time.Time) (bool, error) {
	query := `INSERT INTO reminder_pass_leases (name, holder, expires_at)
						VALUES ($1, $2, $3)
						ON CONFLICT (name) DO UPDATE
							SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
							WHERE reminder_pass_leases.expires_at <= $4
								OR reminder_pass_leases.holder = EXCLUDED.holder`
	tag, err := l.db.Exec(ctx, query, l.name, holder, now.Add(ttl), now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (l *LeaseRepository) Release(ctx context.Context, holder string) error {
	query := `DELETE FROM reminder_pass_leases WHERE name = $1 AND holder = $2`
	_, err := l.db.Exec(ctx, query, l.name, holder)
	return err
}
