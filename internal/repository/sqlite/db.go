package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that text comparison orders like time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Open opens (or creates) the SQLite database at path and ensures the
// schema exists. Use ":memory:" for a throwaway database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			id               TEXT    PRIMARY KEY,
			user_id          TEXT    NOT NULL,
			content          TEXT    NOT NULL,
			type             TEXT    NOT NULL DEFAULT 'INBOX',
			status           TEXT    NOT NULL DEFAULT 'OPEN',
			due_date         TEXT,
			notify_at        TEXT,
			reminder_sent    INTEGER NOT NULL DEFAULT 0,
			last_reminded_at TEXT,
			created_at       TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_items_type_status ON items (type, status);

		CREATE TABLE IF NOT EXISTS push_subscriptions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			endpoint   TEXT NOT NULL UNIQUE,
			p256dh     TEXT NOT NULL,
			auth       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user ON push_subscriptions (user_id);

		CREATE TABLE IF NOT EXISTS reminder_pass_leases (
			name       TEXT PRIMARY KEY,
			holder     TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by other tools may use plain RFC 3339.
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
