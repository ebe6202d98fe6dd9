package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/X1ag/ReminderEngine/internal/domain"
	"github.com/X1ag/ReminderEngine/internal/logging"
)

var passNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func newTestUsecase(items *memItems, subs *memSubs, tr *fakeTransport, clock func() time.Time) *ReminderUsecase {
	if clock == nil {
		clock = func() time.Time { return passNow }
	}
	return NewReminderUsecase(items, subs, tr, Options{
		Clock:                clock,
		CandidateConcurrency: 3,
	})
}

func detailFor(t *testing.T, r *domain.Report, userID string, policy domain.ReminderPolicy) domain.CandidateDetail {
	t.Helper()
	for _, d := range r.Details {
		if d.UserID == userID && d.Policy == policy.String() {
			return d
		}
	}
	t.Fatalf("no %s detail for %s in %+v", policy, userID, r.Details)
	return domain.CandidateDetail{}
}

func TestRunPass_DatedTaskDeliveredAndCommitted(t *testing.T) {
	item := task("t1", "u1", "Buy milk")
	item.DueAt = tp(passNow.Add(-time.Minute))
	items := newMemItems(item)
	tr := newFakeTransport()

	report, err := newTestUsecase(items, newMemSubs(sub("s1", "u1")), tr, nil).RunPass(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.PassID)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Delivered)
	assert.Zero(t, report.CommitFailures)

	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, `Don't forget: "Buy milk"`, sent[0].Payload.Body)

	got := items.get("t1")
	assert.True(t, got.ReminderSent)
	require.NotNil(t, got.LastRemindedAt)
	assert.Equal(t, passNow, *got.LastRemindedAt)
}

func TestRunPass_SecondPassIsNoop(t *testing.T) {
	dated := task("t1", "u1", "a")
	dated.DueAt = tp(passNow.Add(-time.Hour))
	items := newMemItems(
		dated,
		task("t2", "u1", "b"),
		inboxItem("i1", "u1", passNow.Add(-3*time.Hour)),
	)
	tr := newFakeTransport()
	uc := newTestUsecase(items, newMemSubs(sub("s1", "u1")), tr, nil)

	first, err := uc.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Processed)
	assert.Len(t, tr.Sent(), 3)

	second, err := uc.RunPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Processed)
	assert.Len(t, tr.Sent(), 3)
	assert.Equal(t, 3, items.updateCount())
}

func TestRunPass_ZeroSubscriptionsStillCommits(t *testing.T) {
	item := task("t1", "u1", "x")
	item.DueAt = tp(passNow.Add(-time.Minute))
	items := newMemItems(item)
	tr := newFakeTransport()

	report, err := newTestUsecase(items, newMemSubs(), tr, nil).RunPass(context.Background())
	require.NoError(t, err)

	assert.Empty(t, tr.Sent())
	assert.Equal(t, 1, report.NoSubscriptions)
	d := detailFor(t, report, "u1", domain.PolicyDatedTask)
	assert.Equal(t, domain.CandidateNoSubscriptions, d.Status)
	assert.True(t, d.Committed)
	assert.True(t, items.get("t1").ReminderSent)
}

func TestRunPass_InboxAggregate(t *testing.T) {
	items := newMemItems(
		inboxItem("i1", "u1", passNow.Add(-3*time.Hour)),
		inboxItem("i2", "u1", passNow.Add(-4*time.Hour)),
		inboxItem("i3", "u1", passNow.Add(-5*time.Hour)),
	)
	tr := newFakeTransport()

	report, err := newTestUsecase(items, newMemSubs(sub("s1", "u1")), tr, nil).RunPass(context.Background())
	require.NoError(t, err)

	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Payload.Body, "3 items")

	d := detailFor(t, report, "u1", domain.PolicyStaleInbox)
	assert.Equal(t, "inbox_nudge", d.Type)
	assert.Equal(t, 3, d.Count)
	assert.ElementsMatch(t, []string{"i1", "i2", "i3"}, d.ItemIDs)
	for _, id := range []string{"i1", "i2", "i3"} {
		got := items.get(id)
		require.NotNil(t, got.LastRemindedAt, id)
		assert.Equal(t, passNow, *got.LastRemindedAt, id)
	}
}

func TestRunPass_PartialDeliveryCommits(t *testing.T) {
	item := task("t1", "u1", "x")
	item.DueAt = tp(passNow.Add(-time.Minute))
	items := newMemItems(item)
	tr := newFakeTransport()
	tr.fail["https://push.example.com/s1"] = &domain.DeliveryError{Kind: domain.ErrEndpointExpired, StatusCode: 410}

	report, err := newTestUsecase(items, newMemSubs(sub("s1", "u1"), sub("s2", "u1")), tr, nil).RunPass(context.Background())
	require.NoError(t, err)

	d := detailFor(t, report, "u1", domain.PolicyDatedTask)
	assert.Equal(t, domain.CandidatePartial, d.Status)
	assert.Equal(t, 1, d.Delivery.Succeeded)
	assert.Equal(t, 1, d.Delivery.Failed)
	assert.True(t, d.Committed)
	assert.Equal(t, 1, report.PartialFailures)
	assert.True(t, items.get("t1").ReminderSent)
}

func TestRunPass_AllEndpointsFailStillCommits(t *testing.T) {
	items := newMemItems(task("t1", "u1", "x"))
	tr := newFakeTransport()
	tr.fail["https://push.example.com/s1"] = &domain.DeliveryError{Kind: domain.ErrNetwork}

	report, err := newTestUsecase(items, newMemSubs(sub("s1", "u1")), tr, nil).RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalFailures)
	assert.Equal(t, domain.CandidateFailed, report.Details[0].Status)
	assert.NotNil(t, items.get("t1").LastRemindedAt)
}

func TestRunPass_UndatedInterval(t *testing.T) {
	recent := task("t1", "u1", "recent")
	recent.LastRemindedAt = tp(passNow.Add(-23 * time.Hour))
	old := task("t2", "u1", "old")
	old.LastRemindedAt = tp(passNow.Add(-25 * time.Hour))
	items := newMemItems(recent, old)
	tr := newFakeTransport()

	report, err := newTestUsecase(items, newMemSubs(sub("s1", "u1")), tr, nil).RunPass(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, report.Processed)
	assert.Equal(t, []string{"t2"}, report.Details[0].ItemIDs)
	assert.Equal(t, passNow.Add(-23*time.Hour), *items.get("t1").LastRemindedAt)
}

func TestRunPass_NotifyAtGoverns(t *testing.T) {
	item := task("t1", "u1", "x")
	item.DueAt = tp(passNow.Add(time.Hour))
	item.NotifyAt = tp(passNow.Add(-10 * time.Minute))
	items := newMemItems(item)
	tr := newFakeTransport()

	report, err := newTestUsecase(items, newMemSubs(sub("s1", "u1")), tr, nil).RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Delivered)
	assert.True(t, items.get("t1").ReminderSent)
}

func TestRunPass_QueryFailureIsolated(t *testing.T) {
	dated := task("t1", "u1", "x")
	dated.DueAt = tp(passNow.Add(-time.Minute))
	items := newMemItems(dated, inboxItem("i1", "u1", passNow.Add(-3*time.Hour)))
	items.failUndated = errStoreDown
	tr := newFakeTransport()

	report, err := newTestUsecase(items, newMemSubs(sub("s1", "u1")), tr, nil).RunPass(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Aborted)
	assert.Equal(t, 2, report.Processed)
	require.Len(t, report.QueryFailures, 1)
	assert.Equal(t, QueryUndatedTasks, report.QueryFailures[0].Query)
}

func TestRunPass_StoreUnavailableAborts(t *testing.T) {
	items := newMemItems()
	items.failDue, items.failUndated, items.failInbox = errStoreDown, errStoreDown, errStoreDown
	tr := newFakeTransport()

	report, err := newTestUsecase(items, newMemSubs(), tr, nil).RunPass(context.Background())
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.True(t, report.Aborted)
	assert.Len(t, report.QueryFailures, 3)
	assert.Zero(t, report.Processed)
}

func TestRunPass_ConfigurationErrorAborts(t *testing.T) {
	item := task("t1", "u1", "x")
	items := newMemItems(item)
	tr := newFakeTransport()
	tr.validateErr = fmt.Errorf("%w: vapid keys missing", domain.ErrConfiguration)
	log := logging.NewTestLogger()

	uc := NewReminderUsecase(items, newMemSubs(sub("s1", "u1")), tr, Options{
		Clock:  func() time.Time { return passNow },
		Logger: log.Logger,
	})
	report, err := uc.RunPass(context.Background())

	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.True(t, report.Aborted)
	assert.Contains(t, report.Error, "vapid")
	assert.Empty(t, tr.Sent())
	assert.Zero(t, items.updateCount())
	log.AssertLogged(t, zapcore.ErrorLevel, "reminder pass aborted")
}

func TestRunPass_LookupFailureSkipsCommit(t *testing.T) {
	a := task("t1", "u1", "x")
	b := task("t2", "u2", "y")
	items := newMemItems(a, b)
	subs := newMemSubs(sub("s1", "u1"), sub("s2", "u2"))
	subs.failOn["u1"] = true
	tr := newFakeTransport()

	report, err := newTestUsecase(items, subs, tr, nil).RunPass(context.Background())
	require.NoError(t, err)

	failed := detailFor(t, report, "u1", domain.PolicyUndatedTask)
	assert.Equal(t, domain.CandidateLookupFailed, failed.Status)
	assert.False(t, failed.Committed)
	assert.Nil(t, items.get("t1").LastRemindedAt)

	ok := detailFor(t, report, "u2", domain.PolicyUndatedTask)
	assert.True(t, ok.Committed)
	assert.Equal(t, 1, report.TotalFailures)
	assert.Zero(t, report.CommitFailures)
}

func TestRunPass_CommitFailureReported(t *testing.T) {
	items := newMemItems(task("t1", "u1", "x"))
	items.failUpdate = errStoreDown
	tr := newFakeTransport()

	report, err := newTestUsecase(items, newMemSubs(sub("s1", "u1")), tr, nil).RunPass(context.Background())
	require.NoError(t, err)

	assert.Len(t, tr.Sent(), 1)
	assert.Equal(t, 1, report.CommitFailures)
	assert.Contains(t, report.Details[0].Error, "update reminder state")
}

func TestRunPass_CancelledBeforeStart(t *testing.T) {
	items := newMemItems(task("t1", "u1", "x"), task("t2", "u2", "y"))
	tr := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestUsecase(items, newMemSubs(sub("s1", "u1")), tr, nil).RunPass(ctx)
	require.NoError(t, err)

	assert.Empty(t, tr.Sent())
	assert.Zero(t, items.updateCount())
	for _, d := range report.Details {
		assert.Equal(t, domain.CandidateCancelled, d.Status)
	}
	assert.Zero(t, report.CommitFailures)
}

func TestRunPass_DeadlineDuringDeliveryLeavesItemsEligible(t *testing.T) {
	item := task("t1", "u1", "Pay rent")
	item.DueAt = tp(passNow.Add(-time.Minute))
	items := newMemItems(item)
	tr := newFakeTransport()
	tr.block = true
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	report, err := newTestUsecase(items, newMemSubs(sub("s1", "u1"), sub("s2", "u1")), tr, nil).RunPass(ctx)
	require.NoError(t, err)

	require.Len(t, report.Details, 1)
	d := report.Details[0]
	assert.Equal(t, domain.CandidateCancelled, d.Status)
	assert.False(t, d.Committed)
	assert.Zero(t, d.Delivery.Succeeded)
	assert.Zero(t, items.updateCount())
	assert.False(t, items.get("t1").ReminderSent)
	assert.Zero(t, report.CommitFailures)
}

func TestRunPass_MultipleUsersIndependent(t *testing.T) {
	var all []*domain.Item
	var subs []*domain.Subscription
	for i := range 20 {
		user := fmt.Sprintf("u%d", i)
		all = append(all, task(fmt.Sprintf("t%d", i), user, "x"))
		subs = append(subs, sub(fmt.Sprintf("s%d", i), user))
	}
	items := newMemItems(all...)
	tr := newFakeTransport()

	report, err := newTestUsecase(items, newMemSubs(subs...), tr, nil).RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, report.Processed)
	assert.Equal(t, 20, report.Delivered)
	assert.Len(t, tr.Sent(), 20)
	assert.Equal(t, 20, items.updateCount())
}

func TestSendTest(t *testing.T) {
	items := newMemItems(task("t1", "u1", "x"))
	tr := newFakeTransport()
	uc := newTestUsecase(items, newMemSubs(sub("s1", "u1"), sub("s2", "u1")), tr, nil)

	out, err := uc.SendTest(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Succeeded)
	for _, s := range tr.Sent() {
		assert.Equal(t, "Test notification", s.Payload.Title)
	}
	assert.Zero(t, items.updateCount())

	_, err = uc.SendTest(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrNoSubscriptions)

	_, err = uc.SendTest(context.Background(), "")
	assert.Error(t, err)
}
