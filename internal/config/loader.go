package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/stxbets/market-engine/internal/model"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STXBETS_* environment variable overrides, and
// returns the final Config. An empty path skips the file and runs on
// defaults plus environment. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known STXBETS_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setStr(&cfg.Server.Addr, "STXBETS_SERVER_ADDR")
	setStringSlice(&cfg.Server.CORSOrigins, "STXBETS_SERVER_CORS_ORIGINS")
	setDuration(&cfg.Server.ShutdownTimeout, "STXBETS_SERVER_SHUTDOWN_TIMEOUT")

	// ── Database ──
	setStr(&cfg.Database.DSN, "STXBETS_DATABASE_DSN")
	setInt(&cfg.Database.PoolMaxConns, "STXBETS_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "STXBETS_DATABASE_POOL_MIN_CONNS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "STXBETS_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "STXBETS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STXBETS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STXBETS_REDIS_DB")
	setDuration(&cfg.Redis.CacheTTL, "STXBETS_REDIS_CACHE_TTL")

	// ── Engine ──
	setInt64(&cfg.Engine.Fees.PlatformBps, "STXBETS_ENGINE_PLATFORM_BPS")
	setInt64(&cfg.Engine.Fees.CreatorBps, "STXBETS_ENGINE_CREATOR_BPS")
	setInt64(&cfg.Engine.Fees.LPBps, "STXBETS_ENGINE_LP_BPS")
	setMicro(&cfg.Engine.MinBetMicro, "STXBETS_ENGINE_MIN_BET_MICRO")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "STXBETS_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setMicro(dst *model.MicroSTX, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = model.MicroSTX(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
