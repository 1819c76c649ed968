// Package config defines the top-level configuration for the quote service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/stxbets/market-engine/internal/fees"
	"github.com/stxbets/market-engine/internal/model"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by STXBETS_* environment
// variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Engine   EngineConfig   `toml:"engine"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	CORSOrigins     []string `toml:"cors_origins"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters. When DSN is empty
// the service runs on the in-memory store (development mode).
type DatabaseConfig struct {
	DSN          string `toml:"dsn"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis cache parameters. Disabled by default; the
// service reads straight from PostgreSQL when no cache is configured.
type RedisConfig struct {
	Enabled  bool     `toml:"enabled"`
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	CacheTTL duration `toml:"cache_ttl"`
}

// EngineConfig holds the fee regime and bet limits the engine quotes with.
// The values must mirror the deployed contract's constants or quotes will
// drift from on-chain results.
type EngineConfig struct {
	Fees        fees.Schedule  `toml:"fees"`
	MinBetMicro model.MicroSTX `toml:"min_bet_micro"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the live contract regime and
// development-friendly infrastructure settings.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"http://localhost:3000"},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			CacheTTL: duration{30 * time.Second},
		},
		Engine: EngineConfig{
			// Live mainnet regime: 2% platform, 1% creator, 1% LP.
			Fees: fees.Schedule{
				PlatformBps: 200,
				CreatorBps:  100,
				LPBps:       100,
			},
			MinBetMicro: 1_000000,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty")
	}
	if c.Server.ShutdownTimeout.Duration <= 0 {
		errs = append(errs, "server: shutdown_timeout must be positive")
	}

	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.CacheTTL.Duration <= 0 {
			errs = append(errs, "redis: cache_ttl must be positive when enabled")
		}
	}

	if err := c.Engine.Fees.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("engine: %v", err))
	}
	if c.Engine.MinBetMicro < 0 {
		errs = append(errs, "engine: min_bet_micro must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
