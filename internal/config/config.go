// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and TIERGATE_ env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory validation queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of validation workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps the in-flight submission guard.
	DedupeSize int `koanf:"dedupe_size"`

	// Validation thresholds.
	MinGameBuild              int    `koanf:"min_game_build"`
	MaxPlayerDowns            int    `koanf:"max_player_downs"`
	MaxSquadDowns             int    `koanf:"max_squad_downs"`
	MaxSquadDeaths            int    `koanf:"max_squad_deaths"`
	MaxHealers                int    `koanf:"max_healers"`
	HealerExceptionProfession string `koanf:"healer_exception_profession"`

	// DebugMechanics runs every mechanic check in debug mode.
	DebugMechanics bool `koanf:"debug_mechanics"`

	// RulesPath points at a YAML rule pack; empty uses the embedded one.
	RulesPath string `koanf:"rules_path"`

	// StoreDriver selects memory, postgres or sqlite.
	StoreDriver   string `koanf:"store_driver"`
	StoreDSN      string `koanf:"store_dsn"`
	StoreMaxConns int    `koanf:"store_max_conns"`

	// LogSourceURL is the base URL of the log host (dps.report).
	LogSourceURL       string  `koanf:"log_source_url"`
	LogSourceRate      float64 `koanf:"log_source_rate"`
	LogSourceTimeoutMS int     `koanf:"log_source_timeout_ms"`

	// CacheAddr enables the Redis cache for fetched logs when set.
	CacheAddr       string `koanf:"cache_addr"`
	CachePassword   string `koanf:"cache_password"`
	CacheTTLSeconds int    `koanf:"cache_ttl_seconds"`

	// CORSOrigins is a comma separated list of allowed origins.
	CORSOrigins string `koanf:"cors_origins"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                  "info",
		LogFormat:                 "text",
		Addr:                      ":9080",
		QueueSize:                 1_000,
		WorkerCount:               runtime.NumCPU(),
		DedupeSize:                10_000,
		MinGameBuild:              0,
		MaxPlayerDowns:            1,
		MaxSquadDowns:             9,
		MaxSquadDeaths:            2,
		MaxHealers:                2,
		HealerExceptionProfession: "Tempest",
		StoreDriver:               DriverMemory,
		StoreMaxConns:             10,
		LogSourceURL:              "https://dps.report",
		LogSourceRate:             2,
		LogSourceTimeoutMS:        15_000,
		CacheTTLSeconds:           3600,
		CORSOrigins:               "*",
	}
}

// Validate checks the values Load cannot coerce.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.MaxPlayerDowns < 0 || c.MaxSquadDowns < 0 || c.MaxSquadDeaths < 0 || c.MaxHealers < 0:
		return fmt.Errorf("%w: thresholds must not be negative", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for %s", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	return nil
}

// Origins splits CORSOrigins.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// LogSourceTimeout returns the log fetch timeout.
func (c *Config) LogSourceTimeout() time.Duration {
	return time.Duration(c.LogSourceTimeoutMS) * time.Millisecond
}

// CacheTTL returns how long fetched logs are cached.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
