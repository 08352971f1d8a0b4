package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Ingest    IngestConfig
	Layout    LayoutConfig
	Plugins   PluginConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8600"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	DataDir string `envconfig:"DATA_DIR" default:"~/.inthisone/dashcore"`
}

// CacheConfig bounds the in-memory data cache.
type CacheConfig struct {
	MaxEntries        int           `envconfig:"CACHE_MAX_ENTRIES" default:"256"`
	MaxBytes          int64         `envconfig:"CACHE_MAX_BYTES" default:"67108864"` // 64MB
	CompressThreshold int           `envconfig:"CACHE_COMPRESS_THRESHOLD" default:"65536"`
	SweepInterval     time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"5m"`
	Persistent        bool          `envconfig:"CACHE_PERSISTENT" default:"true"`
}

// IngestConfig shapes polling and failure handling.
type IngestConfig struct {
	MinPollInterval   time.Duration `envconfig:"INGEST_MIN_POLL" default:"1s"`
	MaxPollInterval   time.Duration `envconfig:"INGEST_MAX_POLL" default:"1h"`
	BackoffFactor     float64       `envconfig:"INGEST_BACKOFF_FACTOR" default:"1.5"`
	BackoffCap        float64       `envconfig:"INGEST_BACKOFF_CAP" default:"10"` // multiple of base interval
	DegradedThreshold int           `envconfig:"INGEST_DEGRADED_AFTER" default:"3"`
	FetchTimeout      time.Duration `envconfig:"INGEST_FETCH_TIMEOUT" default:"30s"`
	MaxConcurrent     int           `envconfig:"INGEST_MAX_CONCURRENT" default:"4"`
}

// LayoutConfig shapes snapshot persistence.
type LayoutConfig struct {
	Path               string        `envconfig:"LAYOUT_PATH" default:""` // defaults to <DataDir>/layout.json
	CheckpointInterval time.Duration `envconfig:"LAYOUT_CHECKPOINT" default:"2m"`
}

// PluginConfig controls manifest discovery.
type PluginConfig struct {
	Dir string `envconfig:"PLUGIN_DIR" default:""` // empty disables discovery
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig throttles outbound REST fetches.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"10"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"20"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("DASH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8600",
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			DataDir: "~/.inthisone/dashcore",
		},
		Cache: CacheConfig{
			MaxEntries:        256,
			MaxBytes:          64 * 1024 * 1024,
			CompressThreshold: 64 * 1024,
			SweepInterval:     5 * time.Minute,
			Persistent:        true,
		},
		Ingest: IngestConfig{
			MinPollInterval:   time.Second,
			MaxPollInterval:   time.Hour,
			BackoffFactor:     1.5,
			BackoffCap:        10,
			DegradedThreshold: 3,
			FetchTimeout:      30 * time.Second,
			MaxConcurrent:     4,
		},
		Layout: LayoutConfig{
			CheckpointInterval: 2 * time.Minute,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Enabled:           true,
		},
	}
}
