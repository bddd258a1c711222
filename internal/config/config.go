// Package config reads CLI defaults from VIB3_* environment variables.
// Flags override these values; the struct tags document the defaults.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Config holds the environment-backed CLI defaults.
type Config struct {
	// DBPath is the preset library location.
	DBPath string `env:"VIB3_DB" envDefault:"vib3.db"`

	// IdleThresholdMs is the quiet window before the idle probe fires.
	IdleThresholdMs float64 `env:"VIB3_IDLE_THRESHOLD_MS" envDefault:"8000"`

	// DecayTauMs is the delta decay time constant.
	DecayTauMs float64 `env:"VIB3_DECAY_TAU_MS" envDefault:"1200"`

	// LogLevel selects the slog level: debug, info, warn, or error.
	LogLevel string `env:"VIB3_LOG_LEVEL" envDefault:"info"`
}

// Load parses the VIB3_* environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel onto a slog level. Unknown names fall back
// to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
