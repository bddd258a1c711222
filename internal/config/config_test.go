package config

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets a variable for the test while restoring the original
// value afterwards.
func clearEnv(t *testing.T, key string) {
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "VIB3_DB")
	clearEnv(t, "VIB3_IDLE_THRESHOLD_MS")
	clearEnv(t, "VIB3_DECAY_TAU_MS")
	clearEnv(t, "VIB3_LOG_LEVEL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vib3.db", cfg.DBPath)
	assert.Equal(t, 8000.0, cfg.IdleThresholdMs)
	assert.Equal(t, 1200.0, cfg.DecayTauMs)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIB3_DB", "/tmp/presets.db")
	t.Setenv("VIB3_IDLE_THRESHOLD_MS", "2500")
	t.Setenv("VIB3_DECAY_TAU_MS", "600")
	t.Setenv("VIB3_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/presets.db", cfg.DBPath)
	assert.Equal(t, 2500.0, cfg.IdleThresholdMs)
	assert.Equal(t, 600.0, cfg.DecayTauMs)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsBadNumber(t *testing.T) {
	t.Setenv("VIB3_DECAY_TAU_MS", "not-a-number")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VIB3_DECAY_TAU_MS")
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := Config{LogLevel: tt.name}
		assert.Equal(t, tt.level, cfg.SlogLevel(), "level %q", tt.name)
	}
}
