package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/X1ag/ReminderEngine/internal/config"
	"github.com/X1ag/ReminderEngine/internal/domain"
	"github.com/X1ag/ReminderEngine/internal/infrastructure/webpush"
	"github.com/X1ag/ReminderEngine/internal/logging"
	"github.com/X1ag/ReminderEngine/internal/metrics"
	"github.com/X1ag/ReminderEngine/internal/repository/postgres"
	"github.com/X1ag/ReminderEngine/internal/repository/sqlite"
	"github.com/X1ag/ReminderEngine/internal/usecase"
	"github.com/X1ag/ReminderEngine/transport/worker"
)

// app is the wired engine shared by the serve and run commands.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	metrics   *metrics.Metrics
	items     domain.ItemRepository
	subs      domain.SubscriptionRepository
	lease     domain.PassLease
	transport *webpush.Client
	reminders *usecase.ReminderUsecase
	worker    *worker.Worker
	closers   []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *logging.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: m}
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.transport = webpush.NewClient(webpush.Config{
		PublicKey:  cfg.Push.VAPIDPublicKey,
		PrivateKey: cfg.Push.VAPIDPrivateKey.Value(),
		Subject:    cfg.Push.Subject,
		TTL:        cfg.Push.TTL,
		Urgency:    cfg.Push.Urgency,
		Timeout:    cfg.Push.Timeout,
	})
	if err := a.transport.Validate(); err != nil {
		// Not fatal: every pass reports it until keys are configured.
		logger.Warn(ctx, "push transport not configured", zap.Error(err))
	}

	a.reminders = usecase.NewReminderUsecase(a.items, a.subs, a.transport, usecase.Options{
		Templates: usecase.Templates{
			TaskTitle:  cfg.Templates.TaskTitle,
			TaskBody:   cfg.Templates.TaskBody,
			InboxTitle: cfg.Templates.InboxTitle,
			InboxBody:  cfg.Templates.InboxBody,
			TestTitle:  cfg.Templates.TestTitle,
			TestBody:   cfg.Templates.TestBody,
			Icon:       cfg.Push.Icon,
		},
		CandidateConcurrency: cfg.Scheduler.CandidateConcurrency,
		EndpointConcurrency:  cfg.Scheduler.EndpointConcurrency,
		Logger:               logger.Named("reminders"),
	})

	a.worker = worker.NewWorker(a.reminders, worker.Options{
		Interval:    cfg.Scheduler.Interval,
		PassTimeout: cfg.Scheduler.PassTimeout,
		LeaseTTL:    cfg.Scheduler.LeaseTTL,
		RunOnStart:  cfg.Scheduler.RunOnStart,
		Lease:       a.lease,
		Metrics:     m,
		Logger:      logger,
	})
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	dsn := a.cfg.Database.DSN.Value()

	switch a.cfg.Database.Driver {
	case config.DriverPostgres:
		if a.cfg.Database.Migrate {
			if err := postgres.RunMigrations(dsn, a.logger); err != nil {
				return err
			}
		}
		pool, err := postgres.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		a.items = postgres.NewItemRepository(pool)
		a.subs = postgres.NewSubscriptionRepository(pool)
		a.lease = postgres.NewLeaseRepository(pool, postgres.DefaultLeaseName)

	case config.DriverSQLite:
		db, err := sqlite.Open(dsn)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.items = sqlite.NewItemRepository(db)
		a.subs = sqlite.NewSubscriptionRepository(db)
		a.lease = sqlite.NewLeaseRepository(db, sqlite.DefaultLeaseName)

	default:
		return fmt.Errorf("unsupported database driver %q", a.cfg.Database.Driver)
	}

	a.logger.Info(ctx, "store opened", zap.String("driver", a.cfg.Database.Driver))
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
