package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/X1ag/ReminderEngine/internal/domain"
)

const itemColumns = `id::text, user_id::text, content, type, status, due_date, notify_at, created_at, reminder_sent, last_reminded_at`

type ItemRepository struct {
	db DB
}

func NewItemRepository(db DB) *ItemRepository {
	return &ItemRepository{
		db: db,
	}
}

func (r *ItemRepository) ListDueTasks(ctx context.Context, now time.Time) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
						WHERE type = $1 AND status = $2 AND due_date IS NOT NULL AND reminder_sent = false
							AND COALESCE(notify_at, due_date) <= $3
						ORDER BY COALESCE(notify_at, due_date), id`
	return r.list(ctx, query, domain.KindTask, domain.StatusOpen, now)
}

func (r *ItemRepository) ListUndatedTasks(ctx context.Context) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
						WHERE type = $1 AND status = $2 AND due_date IS NULL
						ORDER BY created_at, id`
	return r.list(ctx, query, domain.KindTask, domain.StatusOpen)
}

func (r *ItemRepository) ListStaleInbox(ctx context.Context, threshold time.Time) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
						WHERE type = $1 AND status = $2 AND created_at <= $3
						ORDER BY user_id, created_at, id`
	return r.list(ctx, query, domain.KindInbox, domain.StatusOpen, threshold)
}

// UpdateReminderState never moves last_reminded_at backwards.
func (r *ItemRepository) UpdateReminderState(ctx context.Context, ids []string, sent bool, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE items
						SET reminder_sent = $1,
								last_reminded_at = GREATEST(COALESCE(last_reminded_at, $2), $2)
						WHERE id = ANY($3::uuid[])`
	_, err := r.db.Exec(ctx, query, sent, at, ids)
	return err
}

func (r *ItemRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Item, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*domain.Item, 0, 16)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var (
		item                        domain.Item
		kind, status                string
		dueAt, notifyAt, lastRemind pgtype.Timestamptz
	)
	err := row.Scan(&item.ID, &item.UserID, &item.Content, &kind, &status,
		&dueAt, &notifyAt, &item.CreatedAt, &item.ReminderSent, &lastRemind)
	if err != nil {
		return nil, err
	}
	item.Kind = domain.ItemKind(kind)
	item.Status = domain.ItemStatus(status)
	item.DueAt = timePtr(dueAt)
	item.NotifyAt = timePtr(notifyAt)
	item.LastRemindedAt = timePtr(lastRemind)
	return &item, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
