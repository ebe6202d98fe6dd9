package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/X1ag/ReminderEngine/internal/domain"
)

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (s *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, endpoint, p256dh, auth
		FROM push_subscriptions WHERE user_id = ? ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub := &domain.Subscription{}
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}

// Insert stores sub for local SQLite databases. An existing row with the
// same endpoint is replaced.
func (s *SubscriptionRepository) Insert(ctx context.Context, sub *domain.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = excluded.user_id, p256dh = excluded.p256dh, auth = excluded.auth
	`, sub.ID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}
