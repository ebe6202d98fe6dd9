package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/X1ag/ReminderEngine/internal/config"
	"github.com/X1ag/ReminderEngine/internal/logging"
)

// RootOptions holds global flags and the state loaded from them.
type RootOptions struct {
	ConfigPath string
	LogLevel   string

	cfg    *config.Config
	logger *logging.Logger
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "reminderd",
		Short:         "Reminder scheduling and web push delivery engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log.level (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVAPIDCommand())

	return cmd
}

// load reads configuration and builds the logger. Commands that need
// either call it from RunE.
func (o *RootOptions) load() error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	logger, err := logging.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}
