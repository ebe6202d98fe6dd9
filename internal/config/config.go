// Package config loads reminderd configuration with koanf.
package config

import (
	"fmt"
	"time"

	"github.com/X1ag/ReminderEngine/internal/domain"
	"github.com/X1ag/ReminderEngine/internal/logging"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Push      PushConfig      `koanf:"push"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Server    ServerConfig    `koanf:"server"`
	Templates TemplateConfig  `koanf:"templates"`
	Log       logging.Config  `koanf:"log"`
}

type DatabaseConfig struct {
	Driver  string `koanf:"driver"`
	DSN     Secret `koanf:"dsn"`
	Migrate bool   `koanf:"migrate"`
}

type PushConfig struct {
	VAPIDPublicKey  string        `koanf:"vapid_public_key"`
	VAPIDPrivateKey Secret        `koanf:"vapid_private_key"`
	Subject         string        `koanf:"subject"`
	TTL             int           `koanf:"ttl"`
	Urgency         string        `koanf:"urgency"`
	Timeout         time.Duration `koanf:"timeout"`
	Icon            string        `koanf:"icon"`
}

type SchedulerConfig struct {
	Enabled              bool          `koanf:"enabled"`
	Interval             time.Duration `koanf:"interval"`
	PassTimeout          time.Duration `koanf:"pass_timeout"`
	LeaseTTL             time.Duration `koanf:"lease_ttl"`
	CandidateConcurrency int           `koanf:"candidate_concurrency"`
	EndpointConcurrency  int           `koanf:"endpoint_concurrency"`
	RunOnStart           bool          `koanf:"run_on_start"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	CronSecret      Secret        `koanf:"cron_secret"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TemplateConfig holds notification texts. Task texts may use {content};
// inbox texts may use {count} and {items}.
type TemplateConfig struct {
	TaskTitle  string `koanf:"task_title"`
	TaskBody   string `koanf:"task_body"`
	InboxTitle string `koanf:"inbox_title"`
	InboxBody  string `koanf:"inbox_body"`
	TestTitle  string `koanf:"test_title"`
	TestBody   string `koanf:"test_body"`
}

// Validate checks config for impossible values. Missing VAPID keys are
// reported per pass by the push transport, not here.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.PassTimeout <= 0 {
		return fmt.Errorf("scheduler.pass_timeout must be positive, got %s", c.Scheduler.PassTimeout)
	}
	if c.Scheduler.LeaseTTL < c.Scheduler.PassTimeout+domain.CommitGrace {
		return fmt.Errorf("scheduler.lease_ttl (%s) must cover scheduler.pass_timeout (%s) plus %s for commits",
			c.Scheduler.LeaseTTL, c.Scheduler.PassTimeout, domain.CommitGrace)
	}
	if c.Scheduler.CandidateConcurrency <= 0 {
		return fmt.Errorf("scheduler.candidate_concurrency must be positive")
	}
	if c.Scheduler.EndpointConcurrency <= 0 {
		return fmt.Errorf("scheduler.endpoint_concurrency must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Push.TTL < 0 {
		return fmt.Errorf("push.ttl must not be negative")
	}
	switch c.Push.Urgency {
	case "", "very-low", "low", "normal", "high":
	default:
		return fmt.Errorf("push.urgency must be one of very-low, low, normal, high, got %q", c.Push.Urgency)
	}

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Addr returns host:port for the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
