package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"github.com/X1ag/ReminderEngine/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func RunMigrations(dsn string, logger *logging.Logger) error {
	logger = logging.OrNop(logger)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("cannot connect to db: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("cannot create driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("cannot open migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("cannot create migrate: %w", err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info(context.Background(), "migrations up to date")
			return nil
		}
		return fmt.Errorf("cannot migrate up: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info(context.Background(), "migrations applied", zap.Uint("version", version))

	return nil
}
