// Package config loads the host's settings and the dashboard definitions
// it serves.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix marks environment overrides. A double underscore separates
// nested keys: GRIDBOARD_DATABASE__DSN sets database.dsn.
const EnvPrefix = "GRIDBOARD_"

type Database struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

type Config struct {
	Addr           string        `koanf:"addr"`
	LogLevel       string        `koanf:"log_level"`
	DashboardsPath string        `koanf:"dashboards_path"`
	Watch          bool          `koanf:"watch"`
	Database       Database      `koanf:"database"`
	HTTPTimeout    time.Duration `koanf:"http_timeout"`
	Metrics        bool          `koanf:"metrics"`
}

func defaults() map[string]any {
	return map[string]any{
		"addr":            ":8080",
		"log_level":       "info",
		"dashboards_path": "dashboards.yaml",
		"watch":           false,
		"database.driver": "sqlite",
		"database.dsn":    "file:gridboard.db?cache=shared",
		"http_timeout":    "30s",
		"metrics":         true,
	}
}

// flagKeys maps flag names that do not follow the snake_case rule.
var flagKeys = map[string]string{
	"db-driver": "database.driver",
	"db-dsn":    "database.dsn",
}

// Load layers defaults, the YAML file at path (skipped when empty or
// missing), GRIDBOARD_ environment variables and explicitly set flags, in
// increasing precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(flags, f)
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// RegisterFlags adds the flags Load understands.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8080", "listen address")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("dashboards-path", "dashboards.yaml", "dashboard definitions file")
	fs.Bool("watch", false, "reload dashboard definitions when the file changes")
	fs.String("db-driver", "sqlite", "database/sql driver for the sql endpoint")
	fs.String("db-dsn", "", "data source name for the sql endpoint")
	fs.Duration("http-timeout", 30*time.Second, "timeout for api and sql source requests")
	fs.Bool("metrics", true, "serve prometheus metrics on /metrics")
}
