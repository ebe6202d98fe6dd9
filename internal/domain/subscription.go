package domain

import "context"

// Subscription is one push endpoint registered by a user's device.
type Subscription struct {
	ID       string `db:"id"`
	UserID   string `db:"user_id"`
	Endpoint string `db:"endpoint"`
	P256dh   string `db:"p256dh"`
	Auth     string `db:"auth"`
}

type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID string) ([]*Subscription, error)
}
