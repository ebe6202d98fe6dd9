package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/X1ag/ReminderEngine/internal/domain"
)

var errStoreDown = errors.New("connection refused")

// memItems is an in-memory item store that applies the same scoped
// filters as the SQL repositories.
type memItems struct {
	mu    sync.Mutex
	items map[string]*domain.Item
	order []string

	failDue     error
	failUndated error
	failInbox   error
	failUpdate  error
	updates     [][]string
}

func newMemItems(items ...*domain.Item) *memItems {
	m := &memItems{items: make(map[string]*domain.Item)}
	for _, it := range items {
		m.items[it.ID] = it
		m.order = append(m.order, it.ID)
	}
	return m
}

func (m *memItems) snapshot(keep func(*domain.Item) bool) []*domain.Item {
	var out []*domain.Item
	for _, id := range m.order {
		it := m.items[id]
		if it.Status != domain.StatusOpen || !keep(it) {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}
	return out
}

func (m *memItems) ListDueTasks(_ context.Context, now time.Time) ([]*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDue != nil {
		return nil, m.failDue
	}
	return m.snapshot(func(it *domain.Item) bool {
		if it.Kind != domain.KindTask || it.DueAt == nil || it.ReminderSent {
			return false
		}
		at := *it.DueAt
		if it.NotifyAt != nil {
			at = *it.NotifyAt
		}
		return !at.After(now)
	}), nil
}

func (m *memItems) ListUndatedTasks(context.Context) ([]*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUndated != nil {
		return nil, m.failUndated
	}
	return m.snapshot(func(it *domain.Item) bool {
		return it.Kind == domain.KindTask && it.DueAt == nil
	}), nil
}

func (m *memItems) ListStaleInbox(_ context.Context, threshold time.Time) ([]*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInbox != nil {
		return nil, m.failInbox
	}
	return m.snapshot(func(it *domain.Item) bool {
		return it.Kind == domain.KindInbox && !it.CreatedAt.After(threshold)
	}), nil
}

func (m *memItems) UpdateReminderState(_ context.Context, ids []string, sent bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	m.updates = append(m.updates, sorted)
	for _, id := range ids {
		it, ok := m.items[id]
		if !ok {
			continue
		}
		it.ReminderSent = sent
		if it.LastRemindedAt == nil || at.After(*it.LastRemindedAt) {
			t := at
			it.LastRemindedAt = &t
		}
	}
	return nil
}

func (m *memItems) get(id string) domain.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.items[id]
}

func (m *memItems) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

type memSubs struct {
	byUser map[string][]*domain.Subscription
	err    error
	failOn map[string]bool
}

func newMemSubs(subs ...*domain.Subscription) *memSubs {
	m := &memSubs{byUser: make(map[string][]*domain.Subscription), failOn: make(map[string]bool)}
	for _, s := range subs {
		m.byUser[s.UserID] = append(m.byUser[s.UserID], s)
	}
	return m
}

func (m *memSubs) GetByUserID(_ context.Context, userID string) ([]*domain.Subscription, error) {
	if m.err != nil || m.failOn[userID] {
		return nil, errStoreDown
	}
	return m.byUser[userID], nil
}

type sentPush struct {
	Endpoint string
	UserID   string
	Payload  domain.Payload
}

// fakeTransport records sends; endpoints listed in fail are rejected.
type fakeTransport struct {
	mu          sync.Mutex
	sent        []sentPush
	fail        map[string]error
	validateErr error
	panicOn     string
	// block makes Send wait for the context to end.
	block bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{fail: make(map[string]error)}
}

func (f *fakeTransport) Validate() error {
	return f.validateErr
}

func (f *fakeTransport) Send(ctx context.Context, sub *domain.Subscription, payload domain.Payload) error {
	if sub.Endpoint == f.panicOn {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return &domain.DeliveryError{Endpoint: sub.Endpoint, Kind: domain.ErrNetwork, Err: ctx.Err()}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentPush{Endpoint: sub.Endpoint, UserID: sub.UserID, Payload: payload})
	if err, ok := f.fail[sub.Endpoint]; ok {
		return err
	}
	return nil
}

func (f *fakeTransport) Sent() []sentPush {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentPush(nil), f.sent...)
}

func tp(t time.Time) *time.Time { return &t }

func sub(id, userID string) *domain.Subscription {
	return &domain.Subscription{ID: id, UserID: userID, Endpoint: "https://push.example.com/" + id, P256dh: "p", Auth: "a"}
}

func task(id, userID, content string) *domain.Item {
	return &domain.Item{ID: id, UserID: userID, Content: content, Kind: domain.KindTask, Status: domain.StatusOpen}
}

func inboxItem(id, userID string, created time.Time) *domain.Item {
	return &domain.Item{ID: id, UserID: userID, Content: "note " + id, Kind: domain.KindInbox, Status: domain.StatusOpen, CreatedAt: created}
}
