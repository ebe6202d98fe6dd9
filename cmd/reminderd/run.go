package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/X1ag/ReminderEngine/internal/metrics"
)

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a single reminder pass and print its report",
		Long: `Run one reminder pass against the configured store and print the
report as JSON. Exits non-zero when the pass was aborted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.load(); err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := newApp(ctx, rootOpts.cfg, rootOpts.logger, metrics.Default())
			if err != nil {
				return err
			}
			defer a.Close()

			report, passErr := a.worker.RunOnce(ctx)
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
			}
			if passErr != nil {
				rootOpts.logger.Error(ctx, "pass failed", zap.Error(passErr))
				return passErr
			}
			return nil
		},
	}
}
