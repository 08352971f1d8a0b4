package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8600", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	// Storage config
	assert.Equal(t, "~/.inthisone/dashcore", cfg.Storage.DataDir)

	// Cache config
	assert.Equal(t, 256, cfg.Cache.MaxEntries)
	assert.EqualValues(t, 64*1024*1024, cfg.Cache.MaxBytes)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SweepInterval)
	assert.True(t, cfg.Cache.Persistent)

	// Ingest config
	assert.Equal(t, time.Second, cfg.Ingest.MinPollInterval)
	assert.Equal(t, time.Hour, cfg.Ingest.MaxPollInterval)
	assert.Equal(t, 3, cfg.Ingest.DegradedThreshold)
	assert.Equal(t, 30*time.Second, cfg.Ingest.FetchTimeout)
	assert.Equal(t, 4, cfg.Ingest.MaxConcurrent)

	// Layout config
	assert.Empty(t, cfg.Layout.Path)
	assert.Equal(t, 2*time.Minute, cfg.Layout.CheckpointInterval)

	// Plugin discovery is opt-in
	assert.Empty(t, cfg.Plugins.Dir)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DASH_PORT", "9100")
	t.Setenv("DASH_HOST", "0.0.0.0")
	t.Setenv("DASH_CACHE_MAX_ENTRIES", "32")
	t.Setenv("DASH_INGEST_MIN_POLL", "5s")
	t.Setenv("DASH_LAYOUT_CHECKPOINT", "30s")
	t.Setenv("DASH_PLUGIN_DIR", "/opt/dash/plugins")
	t.Setenv("DASH_LOG_LEVEL", "debug")
	t.Setenv("DASH_RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 32, cfg.Cache.MaxEntries)
	assert.Equal(t, 5*time.Second, cfg.Ingest.MinPollInterval)
	assert.Equal(t, 30*time.Second, cfg.Layout.CheckpointInterval)
	assert.Equal(t, "/opt/dash/plugins", cfg.Plugins.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadDefaultsWithoutEnvironment(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8600", cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Ingest.MaxPollInterval)
	assert.True(t, cfg.Cache.Persistent)
}

func TestLoadRejectsBadValue(t *testing.T) {
	t.Setenv("DASH_CACHE_MAX_ENTRIES", "lots")

	_, err := Load()
	require.Error(t, err)

	// LoadOrDefault swallows the parse failure and falls back.
	cfg := LoadOrDefault()
	assert.Equal(t, 256, cfg.Cache.MaxEntries)
}
