package domain

import "time"

type ReminderPolicy int

// Declaration order is selection priority: when one item matches several
// policies in a single pass, the lowest value wins.
const (
	PolicyDatedTask ReminderPolicy = iota + 1
	PolicyUndatedTask
	PolicyStaleInbox
)

const (
	UndatedTaskInterval = 24 * time.Hour
	StaleInboxAge       = 2 * time.Hour
	StaleInboxInterval  = 2 * time.Hour
)

func (p ReminderPolicy) String() string {
	switch p {
	case PolicyDatedTask:
		return "dated_task"
	case PolicyUndatedTask:
		return "undated_task"
	case PolicyStaleInbox:
		return "stale_inbox"
	default:
		return "unknown"
	}
}

// PolicyFor classifies an item. ok is false for items that never take part
// in reminders (closed items, memories, locations).
func PolicyFor(item *Item) (policy ReminderPolicy, ok bool) {
	if item == nil || item.Status != StatusOpen {
		return 0, false
	}
	switch item.Kind {
	case KindTask:
		if item.DueAt != nil {
			return PolicyDatedTask, true
		}
		return PolicyUndatedTask, true
	case KindInbox:
		return PolicyStaleInbox, true
	default:
		return 0, false
	}
}

// IsEligible reports whether policy fires for item at now. Thresholds are
// inclusive: now equal to the threshold is due.
func IsEligible(item *Item, policy ReminderPolicy, now time.Time) bool {
	if item == nil || item.Status != StatusOpen {
		return false
	}

	switch policy {
	case PolicyDatedTask:
		if item.Kind != KindTask || item.DueAt == nil || item.ReminderSent {
			return false
		}
		if item.NotifyAt != nil {
			return !now.Before(*item.NotifyAt)
		}
		return !now.Before(*item.DueAt)

	case PolicyUndatedTask:
		if item.Kind != KindTask || item.DueAt != nil {
			return false
		}
		return elapsed(item.LastRemindedAt, now, UndatedTaskInterval)

	case PolicyStaleInbox:
		if item.Kind != KindInbox {
			return false
		}
		if now.Sub(item.CreatedAt) < StaleInboxAge {
			return false
		}
		return elapsed(item.LastRemindedAt, now, StaleInboxInterval)
	}

	return false
}

// elapsed is true when last is unset or at least interval has passed since it.
// A last timestamp in the future (clock skew) is never elapsed.
func elapsed(last *time.Time, now time.Time, interval time.Duration) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= interval
}

// Candidate is one unit of work for a pass: a single task, or every stale
// inbox item of one user folded into one aggregate notification.
type Candidate struct {
	Policy ReminderPolicy
	UserID string
	Items  []*Item
}

func (c Candidate) ItemIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (c Candidate) IsAggregate() bool {
	return c.Policy == PolicyStaleInbox
}
