package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const DefaultLeaseName = "reminder_pass"

type LeaseRepository struct {
	db   *sql.DB
	name string
}

func NewLeaseRepository(db *sql.DB, name string) *LeaseRepository {
	if name == "" {
		name = DefaultLeaseName
	}
	return &LeaseRepository{db: db, name: name}
}

func (l *LeaseRepository) Acquire(ctx context.Context, holder string, ttl time.Duration, now time.Time) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO reminder_pass_leases (name, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			holder = excluded.holder, expires_at = excluded.expires_at
		WHERE reminder_pass_leases.expires_at <= ? OR reminder_pass_leases.holder = excluded.holder
	`, l.name, holder, formatTime(now.Add(ttl)), formatTime(now))
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	return n == 1, nil
}

func (l *LeaseRepository) Release(ctx context.Context, holder string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM reminder_pass_leases WHERE name = ? AND holder = ?`, l.name, holder)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
