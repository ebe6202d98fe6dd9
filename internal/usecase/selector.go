package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/X1ag/ReminderEngine/internal/domain"
	"github.com/X1ag/ReminderEngine/internal/logging"
)

const (
	QueryDueTasks       = "due_tasks"
	QueryUndatedTasks   = "undated_tasks"
	QueryStaleInbox     = "stale_inbox"
	candidateQueryCount = 3
)

// Selection is the ordered work list of one pass.
type Selection struct {
	Candidates []domain.Candidate
	// Considered counts distinct items read from the store before filtering.
	Considered int
	Failures   []domain.QueryFailure
}

// StoreUnavailable is true when every candidate query failed.
func (s Selection) StoreUnavailable() bool {
	return len(s.Failures) == candidateQueryCount
}

type CandidateSelector struct {
	items  domain.ItemRepository
	logger *logging.Logger
}

func NewCandidateSelector(items domain.ItemRepository, logger *logging.Logger) *CandidateSelector {
	return &CandidateSelector{
		items:  items,
		logger: logging.OrNop(logger),
	}
}

type scopedQuery struct {
	name   string
	policy domain.ReminderPolicy
	run    func(ctx context.Context, now time.Time) ([]*domain.Item, error)
}

// Select runs the three scoped reads in policy priority order and returns
// every eligible item at most once. Tasks come first, one candidate each,
// followed by one inbox aggregate per user.
func (s *CandidateSelector) Select(ctx context.Context, now time.Time) Selection {
	queries := []scopedQuery{
		{QueryDueTasks, domain.PolicyDatedTask, s.items.ListDueTasks},
		{QueryUndatedTasks, domain.PolicyUndatedTask, func(ctx context.Context, _ time.Time) ([]*domain.Item, error) {
			return s.items.ListUndatedTasks(ctx)
		}},
		{QueryStaleInbox, domain.PolicyStaleInbox, func(ctx context.Context, now time.Time) ([]*domain.Item, error) {
			return s.items.ListStaleInbox(ctx, now.Add(-domain.StaleInboxAge))
		}},
	}

	var sel Selection
	read := make(map[string]struct{})
	selected := make(map[string]struct{})
	inbox := make(map[string][]*domain.Item)
	var inboxUsers []string

	for _, q := range queries {
		items, err := q.run(ctx, now)
		if err != nil {
			s.logger.Warn(ctx, "candidate query failed", zap.String("query", q.name), zap.Error(err))
			sel.Failures = append(sel.Failures, domain.QueryFailure{Query: q.name, Error: err.Error()})
			continue
		}

		for _, item := range items {
			if item == nil {
				continue
			}
			if _, ok := read[item.ID]; !ok {
				read[item.ID] = struct{}{}
				sel.Considered++
			}
			if _, ok := selected[item.ID]; ok {
				continue
			}
			if !domain.IsEligible(item, q.policy, now) {
				continue
			}
			selected[item.ID] = struct{}{}

			if q.policy == domain.PolicyStaleInbox {
				if _, ok := inbox[item.UserID]; !ok {
					inboxUsers = append(inboxUsers, item.UserID)
				}
				inbox[item.UserID] = append(inbox[item.UserID], item)
				continue
			}
			sel.Candidates = append(sel.Candidates, domain.Candidate{
				Policy: q.policy,
				UserID: item.UserID,
				Items:  []*domain.Item{item},
			})
		}
	}

	for _, userID := range inboxUsers {
		sel.Candidates = append(sel.Candidates, domain.Candidate{
			Policy: domain.PolicyStaleInbox,
			UserID: userID,
			Items:  inbox[userID],
		})
	}

	s.logger.Debug(ctx, "candidates selected",
		zap.Int("considered", sel.Considered),
		zap.Int("candidates", len(sel.Candidates)),
		zap.Int("query_failures", len(sel.Failures)),
	)
	return sel
}
