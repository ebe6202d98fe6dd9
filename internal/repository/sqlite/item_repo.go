package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/X1ag/ReminderEngine/internal/domain"
)

const itemColumns = `id, user_id, content, type, status, due_date, notify_at, created_at, reminder_sent, last_reminded_at`

// ItemRepository is the SQLite item store.
type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) ListDueTasks(ctx context.Context, now time.Time) ([]*domain.Item, error) {
	return r.list(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE type = ? AND status = ? AND due_date IS NOT NULL AND reminder_sent = 0
			AND COALESCE(notify_at, due_date) <= ?
		ORDER BY COALESCE(notify_at, due_date), id
	`, domain.KindTask, domain.StatusOpen, formatTime(now))
}

func (r *ItemRepository) ListUndatedTasks(ctx context.Context) ([]*domain.Item, error) {
	return r.list(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE type = ? AND status = ? AND due_date IS NULL
		ORDER BY created_at, id
	`, domain.KindTask, domain.StatusOpen)
}

func (r *ItemRepository) ListStaleInbox(ctx context.Context, threshold time.Time) ([]*domain.Item, error) {
	return r.list(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE type = ? AND status = ? AND created_at <= ?
		ORDER BY user_id, created_at, id
	`, domain.KindInbox, domain.StatusOpen, formatTime(threshold))
}

// UpdateReminderState never moves last_reminded_at backwards.
func (r *ItemRepository) UpdateReminderState(ctx context.Context, ids []string, sent bool, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	stamp := formatTime(at)
	args := make([]any, 0, len(ids)+3)
	args = append(args, sent, stamp, stamp)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	_, err := r.db.ExecContext(ctx, `
		UPDATE items
		SET reminder_sent = ?,
			last_reminded_at = MAX(COALESCE(last_reminded_at, ?), ?)
		WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update reminder state: %w", err)
	}
	return nil
}

// Insert stores item under its caller-supplied id. The engine never creates
// items; this seeds local SQLite databases.
func (r *ItemRepository) Insert(ctx context.Context, item *domain.Item) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (id, user_id, content, type, status, due_date, notify_at, created_at, reminder_sent, last_reminded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.UserID, item.Content, item.Kind, item.Status,
		nullTime(item.DueAt), nullTime(item.NotifyAt), formatTime(item.CreatedAt),
		item.ReminderSent, nullTime(item.LastRemindedAt))
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (r *ItemRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		var (
			item                        domain.Item
			kind, status, created       string
			dueAt, notifyAt, lastRemind sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.Content, &kind, &status,
			&dueAt, &notifyAt, &created, &item.ReminderSent, &lastRemind); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Kind = domain.ItemKind(kind)
		item.Status = domain.ItemStatus(status)
		if item.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("item %s created_at: %w", item.ID, err)
		}
		if item.DueAt, err = parseNullTime(dueAt); err != nil {
			return nil, fmt.Errorf("item %s due_date: %w", item.ID, err)
		}
		if item.NotifyAt, err = parseNullTime(notifyAt); err != nil {
			return nil, fmt.Errorf("item %s notify_at: %w", item.ID, err)
		}
		if item.LastRemindedAt, err = parseNullTime(lastRemind); err != nil {
			return nil, fmt.Errorf("item %s last_reminded_at: %w", item.ID, err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}
