package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/X1ag/ReminderEngine/internal/domain"
	"github.com/X1ag/ReminderEngine/internal/logging"
	"github.com/X1ag/ReminderEngine/internal/metrics"
)

const releaseTimeout = 5 * time.Second

// PassRunner runs one reminder pass.
type PassRunner interface {
	RunPass(ctx context.Context) (*domain.Report, error)
}

type Options struct {
	Interval    time.Duration
	PassTimeout time.Duration
	LeaseTTL    time.Duration
	RunOnStart  bool
	// Lease is optional; without it only in-process overlap is prevented.
	Lease   domain.PassLease
	Metrics *metrics.Metrics
	Logger  *logging.Logger
	Clock   func() time.Time
}

// Worker drives reminder passes on a fixed interval and serializes them
// with on-demand triggers.
type Worker struct {
	runner   PassRunner
	opts     Options
	holder   string
	logger   *logging.Logger
	inFlight atomic.Bool

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(runner PassRunner, opts Options) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.PassTimeout <= 0 {
		opts.PassTimeout = opts.Interval
	}
	// Commits may outlive the pass deadline by CommitGrace; the lease must
	// cover them.
	if floor := opts.PassTimeout + domain.CommitGrace; opts.LeaseTTL < floor {
		opts.LeaseTTL = floor
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	holder := uuid.NewString()
	return &Worker{
		runner: runner,
		opts:   opts,
		holder: holder,
		logger: logging.OrNop(opts.Logger).Named("worker").With(zap.String("holder", holder)),
	}
}

// Start schedules passes every interval. With RunOnStart the first pass
// begins immediately in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return errors.New("worker already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	cronLog := logging.CronLogger(w.logger)
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	schedule := fmt.Sprintf("@every %s", w.opts.Interval)
	if _, err := c.AddFunc(schedule, func() { w.tick(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}

	w.cron = c
	w.cancel = cancel
	c.Start()
	w.logger.Info(ctx, "scheduler started",
		zap.Duration("interval", w.opts.Interval),
		zap.Duration("pass_timeout", w.opts.PassTimeout),
		zap.String("holder", w.holder),
	)

	if w.opts.RunOnStart {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.tick(ctx)
		}()
	}
	return nil
}

// Stop halts scheduling and waits for a running pass to finish or ctx to end.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	c, cancel := w.cron, w.cancel
	w.cron, w.cancel = nil, nil
	w.mu.Unlock()
	if c == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		w.logger.Info(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		// Abandon the running pass; its commits still complete.
		cancel()
		return ctx.Err()
	}
}

func (w *Worker) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := w.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPassInProgress):
		w.logger.Debug(ctx, "scheduled pass skipped", zap.Error(err))
	default:
		w.logger.Error(ctx, "scheduled pass failed", zap.Error(err))
	}
}

// RunOnce runs a single pass unless one is already running in this
// process or, when a lease is configured, in another instance. In that
// case it returns domain.ErrPassInProgress without touching the store.
func (w *Worker) RunOnce(ctx context.Context) (*domain.Report, error) {
	if !w.inFlight.CompareAndSwap(false, true) {
		w.opts.Metrics.ObserveSkipped("in_flight")
		return nil, domain.ErrPassInProgress
	}
	defer w.inFlight.Store(false)

	if w.opts.Lease != nil {
		ok, err := w.opts.Lease.Acquire(ctx, w.holder, w.opts.LeaseTTL, w.opts.Clock())
		if err != nil {
			return nil, fmt.Errorf("%w: acquire pass lease: %w", domain.ErrStoreUnavailable, err)
		}
		if !ok {
			w.opts.Metrics.ObserveSkipped("lease_held")
			return nil, domain.ErrPassInProgress
		}
		defer w.release(ctx)
	}

	passCtx, cancel := context.WithTimeout(ctx, w.opts.PassTimeout)
	defer cancel()

	started := time.Now()
	report, err := w.runner.RunPass(passCtx)
	w.opts.Metrics.ObservePass(report, time.Since(started))
	return report, err
}

// InFlight reports whether a pass is running in this process.
func (w *Worker) InFlight() bool {
	return w.inFlight.Load()
}

func (w *Worker) release(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := w.opts.Lease.Release(ctx, w.holder); err != nil {
		// The lease expires on its own after LeaseTTL.
		w.logger.Warn(ctx, "release pass lease failed", zap.Error(err))
	}
}
