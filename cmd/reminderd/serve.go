package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/X1ag/ReminderEngine/internal/metrics"
	transporthttp "github.com/X1ag/ReminderEngine/transport/http"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP trigger surface",
		Long: `Start the interval scheduler (unless scheduler.enabled is false) and the
HTTP server exposing /api/cron/reminders, /api/push/test, /health and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.load(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rootOpts)
		},
	}
}

func serve(ctx context.Context, opts *RootOptions) error {
	cfg, logger := opts.cfg, opts.logger

	a, err := newApp(ctx, cfg, logger, metrics.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := transporthttp.NewServer(a.worker, a.reminders, logger, &transporthttp.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		CronSecret: cfg.Server.CronSecret.Value(),
	})
	if err != nil {
		return err
	}

	if cfg.Scheduler.Enabled {
		if err := a.worker.Start(ctx); err != nil {
			return err
		}
	} else {
		logger.Info(ctx, "scheduler disabled; passes run only on trigger")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown requested")
	case err = <-errCh:
		if err != nil {
			logger.Error(ctx, "http server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	errs = append(errs, err)
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		errs = append(errs, shutdownErr)
	}
	if stopErr := a.worker.Stop(shutdownCtx); stopErr != nil {
		errs = append(errs, stopErr)
	}
	return errors.Join(errs...)
}
