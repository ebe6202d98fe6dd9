package postgres

import (
	"context"

	"github.com/X1ag/ReminderEngine/internal/domain"
)

type SubscriptionRepository struct {
	db DB
}

func NewSubscriptionRepository(db DB) *SubscriptionRepository {
	return &SubscriptionRepository{
		db: db,
	}
}

func (s *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	query := `SELECT id::text, user_id::text, endpoint, p256dh, auth
						FROM push_subscriptions
						WHERE user_id = $1
						ORDER BY created_at, id`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := make([]*domain.Subscription, 0, 4)
	for rows.Next() {
		sub := &domain.Subscription{}
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return subs, nil
}
