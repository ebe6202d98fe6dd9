package usecase

import (
	"context"
	"time"

	"github.com/X1ag/ReminderEngine/internal/domain"
)

type StateCommitter struct {
	items domain.ItemRepository
}

func NewStateCommitter(items domain.ItemRepository) *StateCommitter {
	return &StateCommitter{items: items}
}

// Commit marks every item of the candidate as reminded at now. A failed
// commit leaves the items eligible for the next pass.
func (c *StateCommitter) Commit(ctx context.Context, cand domain.Candidate, now time.Time) error {
	ids := cand.ItemIDs()
	if len(ids) == 0 {
		return nil
	}
	if err := c.items.UpdateReminderState(ctx, ids, true, now); err != nil {
		return &domain.StoreError{Op: "update reminder state", Err: err}
	}
	return nil
}
