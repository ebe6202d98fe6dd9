package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/X1ag/ReminderEngine/internal/domain"
	"github.com/X1ag/ReminderEngine/internal/logging"
)

const (
	tracerName                  = "github.com/X1ag/ReminderEngine/internal/usecase"
	defaultCandidateConcurrency = 8
)

type Options struct {
	Templates            Templates
	CandidateConcurrency int
	EndpointConcurrency  int
	// Clock defaults to time.Now.
	Clock  func() time.Time
	Logger *logging.Logger
}

// ReminderUsecase runs reminder passes: select, dispatch, commit.
type ReminderUsecase struct {
	selector    *CandidateSelector
	dispatcher  *DeliveryDispatcher
	committer   *StateCommitter
	transport   domain.PushTransport
	templates   Templates
	concurrency int
	clock       func() time.Time
	logger      *logging.Logger
	tracer      trace.Tracer
}

func NewReminderUsecase(items domain.ItemRepository, subs domain.SubscriptionRepository, transport domain.PushTransport, opts Options) *ReminderUsecase {
	logger := logging.OrNop(opts.Logger)
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.CandidateConcurrency <= 0 {
		opts.CandidateConcurrency = defaultCandidateConcurrency
	}
	templates := opts.Templates.withDefaults()

	return &ReminderUsecase{
		selector:    NewCandidateSelector(items, logger),
		dispatcher:  NewDeliveryDispatcher(subs, transport, templates, opts.EndpointConcurrency, logger),
		committer:   NewStateCommitter(items),
		transport:   transport,
		templates:   templates,
		concurrency: opts.CandidateConcurrency,
		clock:       opts.Clock,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}
}

// RunPass performs one complete pass. The returned report is never nil.
// A non-nil error means the pass was aborted before any candidate was
// processed: ErrConfiguration when the transport cannot send, or
// ErrStoreUnavailable when every candidate query failed.
func (u *ReminderUsecase) RunPass(ctx context.Context) (*domain.Report, error) {
	started := time.Now()
	now := u.clock()
	report := &domain.Report{
		PassID:    uuid.NewString(),
		StartedAt: now,
		Details:   []domain.CandidateDetail{},
	}
	defer func() {
		report.DurationMS = time.Since(started).Milliseconds()
	}()

	ctx = logging.WithPassID(ctx, report.PassID)
	ctx, span := u.tracer.Start(ctx, "reminder.pass")
	defer span.End()

	if err := u.transport.Validate(); err != nil {
		return u.abort(ctx, span, report, err)
	}

	sel := u.selector.Select(ctx, now)
	report.Considered = sel.Considered
	report.QueryFailures = sel.Failures
	if sel.StoreUnavailable() {
		return u.abort(ctx, span, report, fmt.Errorf("%w: all candidate queries failed", domain.ErrStoreUnavailable))
	}

	details := make([]domain.CandidateDetail, len(sel.Candidates))
	sem := make(chan struct{}, u.concurrency)
	var wg sync.WaitGroup

	for i, c := range sel.Candidates {
		details[i] = newDetail(c)
		if err := ctx.Err(); err != nil {
			details[i].Status = domain.CandidateCancelled
			details[i].Error = err.Error()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			u.process(ctx, c, now, &details[i])
		}()
	}
	wg.Wait()

	report.Details = details
	report.Tally()

	span.SetAttributes(
		attribute.Int("reminder.considered", report.Considered),
		attribute.Int("reminder.processed", report.Processed),
		attribute.Int("reminder.delivered", report.Delivered),
		attribute.Int("reminder.query_failures", len(report.QueryFailures)),
	)
	u.logger.Info(ctx, "reminder pass finished",
		zap.Int("considered", report.Considered),
		zap.Int("processed", report.Processed),
		zap.Int("delivered", report.Delivered),
		zap.Int("partial_failures", report.PartialFailures),
		zap.Int("total_failures", report.TotalFailures),
		zap.Int("no_subscriptions", report.NoSubscriptions),
		zap.Int("commit_failures", report.CommitFailures),
		zap.Int("query_failures", len(report.QueryFailures)),
	)
	return report, nil
}

func (u *ReminderUsecase) abort(ctx context.Context, span trace.Span, report *domain.Report, err error) (*domain.Report, error) {
	report.Aborted = true
	report.Error = err.Error()
	span.RecordError(err)
	span.SetStatus(codes.Error, "pass aborted")
	u.logger.Error(ctx, "reminder pass aborted", zap.Error(err))
	return report, err
}

func (u *ReminderUsecase) process(ctx context.Context, c domain.Candidate, now time.Time, detail *domain.CandidateDetail) {
	ctx, span := u.tracer.Start(ctx, "reminder.candidate", trace.WithAttributes(
		attribute.String("reminder.policy", c.Policy.String()),
		attribute.Int("reminder.items", len(c.Items)),
	))
	defer span.End()

	outcome, err := u.dispatcher.Dispatch(ctx, c)
	detail.Delivery = outcome

	switch {
	case errors.Is(err, domain.ErrNoSubscriptions):
		detail.Status = domain.CandidateNoSubscriptions
	case err != nil:
		// Nothing was sent, so the items stay eligible for the next pass.
		detail.Status = domain.CandidateLookupFailed
		detail.Error = err.Error()
		span.RecordError(err)
		u.logger.Warn(ctx, "subscription lookup failed", zap.String("user_id", c.UserID), zap.Error(err))
		return
	case outcome.Failed == 0:
		detail.Status = domain.CandidateDelivered
	case outcome.Succeeded > 0:
		detail.Status = domain.CandidatePartial
	default:
		detail.Status = domain.CandidateFailed
	}

	// Every send failed after the pass ended: nothing reached the user, so
	// leave the items for the next pass.
	if ctx.Err() != nil && outcome.Succeeded == 0 {
		detail.Status = domain.CandidateCancelled
		detail.Error = ctx.Err().Error()
		u.logger.Warn(ctx, "candidate cancelled during delivery", zap.String("user_id", c.UserID))
		return
	}

	// Sends have been attempted; the commit must land even if the pass
	// deadline expired meanwhile.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), domain.CommitGrace)
	defer cancel()
	if err := u.committer.Commit(commitCtx, c, now); err != nil {
		detail.Error = err.Error()
		span.RecordError(err)
		u.logger.Error(ctx, "commit reminder state failed",
			zap.String("user_id", c.UserID),
			zap.Strings("item_ids", detail.ItemIDs),
			zap.Error(err),
		)
		return
	}
	detail.Committed = true
}

// SendTest delivers the test notification to every endpoint of userID
// without touching reminder state.
func (u *ReminderUsecase) SendTest(ctx context.Context, userID string) (domain.DeliveryOutcome, error) {
	if userID == "" {
		return domain.DeliveryOutcome{}, errors.New("user id is required")
	}
	if err := u.transport.Validate(); err != nil {
		return domain.DeliveryOutcome{}, err
	}
	return u.dispatcher.SendToUser(ctx, userID, u.templates.Test())
}

func newDetail(c domain.Candidate) domain.CandidateDetail {
	typ := "task"
	if c.IsAggregate() {
		typ = "inbox_nudge"
	}
	return domain.CandidateDetail{
		Type:    typ,
		Policy:  c.Policy.String(),
		UserID:  c.UserID,
		ItemIDs: c.ItemIDs(),
		Count:   len(c.Items),
	}
}
