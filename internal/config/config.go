// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config holds everything the server binary reads from the environment
type Config struct {
	Host            string        `env:"PAIRPLAY_HOST"`
	Port            int           `env:"PAIRPLAY_PORT"             envDefault:"8080"`
	ReadTimeout     time.Duration `env:"PAIRPLAY_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"PAIRPLAY_WRITE_TIMEOUT"    envDefault:"0s"`
	ShutdownTimeout time.Duration `env:"PAIRPLAY_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	LogLevel string `env:"PAIRPLAY_LOG_LEVEL" envDefault:"info"`

	Storage     string `env:"PAIRPLAY_STORAGE"      envDefault:"memory"`
	RedisURL    string `env:"PAIRPLAY_REDIS_URL"    envDefault:"redis://localhost:6379"`
	RedisPrefix string `env:"PAIRPLAY_REDIS_PREFIX" envDefault:"pairplay"`
	SQLitePath  string `env:"PAIRPLAY_SQLITE_PATH"  envDefault:"pairplay.db"`

	PrimeBits  int `env:"PAIRPLAY_DH_PRIME_BITS" envDefault:"512"`
	BcryptCost int `env:"PAIRPLAY_BCRYPT_COST"   envDefault:"10"`
}

// Load parses the environment and validates the result
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the env parser can't
func (c Config) Validate() error {
	switch c.Storage {
	case StorageMemory, StorageRedis, StorageSQLite:
	default:
		return fmt.Errorf("invalid PAIRPLAY_STORAGE %q: must be memory, redis or sqlite", c.Storage)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PAIRPLAY_PORT %d", c.Port)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level, falling back to info
func (c Config) SlogLevel() slog.Level {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLogLevel accepts debug, info, warn or error in any case
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid PAIRPLAY_LOG_LEVEL %q", s)
	}
	return level, nil
}
