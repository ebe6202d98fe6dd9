package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before mapping them to keys.
const EnvPrefix = "REMINDER_"

// legacyEnv maps deployment variables used by the web app to config keys.
// They override the file but lose to REMINDER_ variables. Later entries win
// over earlier ones for the same key.
var legacyEnv = []struct{ name, key string }{
	{"DATABASE_URL", "database.dsn"},
	{"CRON_SECRET", "server.cron_secret"},
	{"NEXT_PUBLIC_VAPID_PUBLIC_KEY", "push.vapid_public_key"},
	{"VAPID_PUBLIC_KEY", "push.vapid_public_key"},
	{"VAPID_PRIVATE_KEY", "push.vapid_private_key"},
}

// Load builds configuration from defaults, an optional YAML file, legacy
// variables, and REMINDER_ variables, in increasing order of precedence.
//
// Environment variables use the REMINDER_ prefix and split on the first
// underscore after it:
//
//	REMINDER_SCHEDULER_PASS_TIMEOUT -> scheduler.pass_timeout
//	REMINDER_SERVER_CRON_SECRET     -> server.cron_secret
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(DefaultConfig(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	for _, le := range legacyEnv {
		if v := os.Getenv(le.name); v != "" {
			if err := k.Set(le.key, v); err != nil {
				return nil, fmt.Errorf("failed to apply %s: %w", le.name, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, found := strings.Cut(lower, "_")
	if !found {
		return lower
	}
	return section + "." + field
}
