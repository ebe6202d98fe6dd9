package domain

import (
	"context"
	"time"
)

type ItemKind string

const (
	KindInbox    ItemKind = "INBOX"
	KindTask     ItemKind = "TASK"
	KindMemory   ItemKind = "MEMORY"
	KindLocation ItemKind = "LOCATION"
)

type ItemStatus string

const (
	StatusOpen      ItemStatus = "OPEN"
	StatusCompleted ItemStatus = "COMPLETED"
	StatusArchived  ItemStatus = "ARCHIVED"
)

// Item is a snapshot of a user-owned row as read from the item store.
// Only the fields the reminder engine needs are loaded.
type Item struct {
	ID             string     `db:"id"`
	UserID         string     `db:"user_id"`
	Content        string     `db:"content"`
	Kind           ItemKind   `db:"kind"`
	Status         ItemStatus `db:"status"`
	DueAt          *time.Time `db:"due_at"`
	NotifyAt       *time.Time `db:"notify_at"`
	CreatedAt      time.Time  `db:"created_at"`
	ReminderSent   bool       `db:"reminder_sent"`
	LastRemindedAt *time.Time `db:"last_reminded_at"`
}

// ItemRepository is the item store as seen by the reminder engine.
// Each List* call is an independent snapshot read.
type ItemRepository interface {
	// ListDueTasks returns open tasks with due_at set whose reminder has not
	// been sent and whose notify_at (or due_at when notify_at is unset) is <= now.
	ListDueTasks(ctx context.Context, now time.Time) ([]*Item, error)
	// ListUndatedTasks returns open tasks without due_at.
	ListUndatedTasks(ctx context.Context) ([]*Item, error)
	// ListStaleInbox returns open inbox items created at or before threshold.
	ListStaleInbox(ctx context.Context, threshold time.Time) ([]*Item, error)
	// UpdateReminderState sets reminder_sent and advances last_reminded_at
	// for every id. last_reminded_at never moves backwards.
	UpdateReminderState(ctx context.Context, ids []string, sent bool, at time.Time) error
}
