package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/X1ag/ReminderEngine/internal/config"
	"github.com/X1ag/ReminderEngine/internal/repository/postgres"
	"github.com/X1ag/ReminderEngine/internal/repository/sqlite"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.load(); err != nil {
				return err
			}
			cfg := rootOpts.cfg
			dsn := cfg.Database.DSN.Value()

			switch cfg.Database.Driver {
			case config.DriverPostgres:
				if err := postgres.RunMigrations(dsn, rootOpts.logger); err != nil {
					return err
				}
			case config.DriverSQLite:
				db, err := sqlite.Open(dsn)
				if err != nil {
					return err
				}
				if err := db.Close(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Database.Driver)
			return nil
		},
	}
}
