package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment  string             `toml:"environment"` // "development" or "production"
	Server       ServerConfig       `toml:"server"`
	Storage      StorageConfig      `toml:"storage"`
	Queue        QueueConfig        `toml:"queue"`
	Reachability ReachabilityConfig `toml:"reachability"`
	SafeBrowsing SafeBrowsingConfig `toml:"safebrowsing"`
	Retry        RetryConfig        `toml:"retry"`
	Geo          GeoConfig          `toml:"geo"`
	Logging      LoggingConfig      `toml:"logging"`
	Maintenance  MaintenanceConfig  `toml:"maintenance"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// QueueConfig controls the polling workers that drain the work and result queues.
type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "250ms" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent validation workers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "2m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max times a message can be received before it is dropped
}

// ReachabilityConfig controls the HEAD/GET probe and its verdict cache.
type ReachabilityConfig struct {
	Timeout      string `toml:"timeout"`       // Per-probe HTTP timeout (default "5s")
	CacheEnabled bool   `toml:"cache_enabled"` // Skip all cache reads/writes in the prober when false
	CacheTTL     string `toml:"cache_ttl"`     // TTL for cached verdicts (default "10m")
	UserAgent    string `toml:"user_agent"`    // Identifying User-Agent sent with probes
}

// SafeBrowsingConfig holds the threat-list endpoint, the queue names and the
// token bucket that gates calls to the external API.
type SafeBrowsingConfig struct {
	APIKey      string          `toml:"api_key"`
	APIURL      string          `toml:"api_url"`
	Timeout     string          `toml:"timeout"`      // Per-request HTTP timeout (default "10s")
	WorkQueue   string          `toml:"work_queue"`   // Validation work queue name
	ResultQueue string          `toml:"result_queue"` // Terminal verdict queue name
	RateLimit   RateLimitConfig `toml:"ratelimit"`
}

// RateLimitConfig sizes the token bucket: Capacity tokens, RefillTokens
// added back every RefillInterval.
type RateLimitConfig struct {
	Capacity       int    `toml:"capacity" validate:"gt=0"`
	RefillTokens   int    `toml:"refill_tokens" validate:"gt=0"`
	RefillInterval string `toml:"refill_interval"`
}

// RetryConfig bounds retries around the reachability and safety probers.
type RetryConfig struct {
	MaxAttempts  int    `toml:"max_attempts" validate:"gt=0"`
	WaitDuration string `toml:"wait_duration"` // Constant wait between attempts, e.g. "500ms"
}

// GeoConfig configures the geolocation enrichment pipeline.
type GeoConfig struct {
	Provider     GeoProviderConfig `toml:"provider"`
	Fallback     GeoFallbackConfig `toml:"fallback"`
	CacheTTLDays int               `toml:"cache_ttl_days"` // Positive cache TTL in days
	UnknownTTL   string            `toml:"unknown_ttl"`    // Negative cache TTL (default "60m")
	PoolSize     int               `toml:"pool_size"`      // Geo processor worker goroutines
	QueueSize    int               `toml:"queue_size"`     // Buffered click events before drops
}

type GeoProviderConfig struct {
	BaseURL   string `toml:"base_url"`
	Path      string `toml:"path"` // Contains {ip} placeholder
	APIKey    string `toml:"api_key"`
	Timeout   string `toml:"timeout"`
	RateLimit int    `toml:"rate_limit"` // Requests per second against the provider
}

type GeoFallbackConfig struct {
	BaseURL string `toml:"base_url"`
	Path    string `toml:"path"` // Contains {ip} placeholder
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// MaintenanceConfig drives the cron-scheduled storage upkeep.
type MaintenanceConfig struct {
	Enabled    bool   `toml:"enabled"`
	GCSchedule string `toml:"gc_schedule"` // Cron schedule for badger value-log GC
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings should be exposed in curtail.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Queue: QueueConfig{
			PollInterval:      "250ms",
			Concurrency:       4,
			VisibilityTimeout: "2m",
			MaxReceive:        5,
		},
		Reachability: ReachabilityConfig{
			Timeout:      "5s",
			CacheEnabled: true,
			CacheTTL:     "10m",
			UserAgent:    "UrlShortener-Bot/1.0",
		},
		SafeBrowsing: SafeBrowsingConfig{
			APIURL:      "https://safebrowsing.googleapis.com/v4/threatMatches:find",
			Timeout:     "10s",
			WorkQueue:   "url_validation",
			ResultQueue: "url_validation_results",
			RateLimit: RateLimitConfig{
				Capacity:       10,
				RefillTokens:   10,
				RefillInterval: "1s",
			},
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			WaitDuration: "500ms",
		},
		Geo: GeoConfig{
			Provider: GeoProviderConfig{
				BaseURL:   "https://ipapi.co",
				Path:      "/{ip}/json/",
				Timeout:   "3s",
				RateLimit: 5,
			},
			Fallback: GeoFallbackConfig{
				BaseURL: "http://ip-api.com",
				Path:    "/json/{ip}",
			},
			CacheTTLDays: 7,
			UnknownTTL:   "60m",
			PoolSize:     2,
			QueueSize:    100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Maintenance: MaintenanceConfig{
			Enabled:    true,
			GCSchedule: "*/10 * * * *", // Every 10 minutes
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CURTAIL_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("CURTAIL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CURTAIL_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if path := os.Getenv("CURTAIL_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if key := os.Getenv("CURTAIL_SAFEBROWSING_API_KEY"); key != "" {
		config.SafeBrowsing.APIKey = key
	}
	if url := os.Getenv("CURTAIL_SAFEBROWSING_API_URL"); url != "" {
		config.SafeBrowsing.APIURL = url
	}
	if key := os.Getenv("CURTAIL_GEO_API_KEY"); key != "" {
		config.Geo.Provider.APIKey = key
	}
	if level := os.Getenv("CURTAIL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ParseDuration parses a duration config field, falling back when blank or invalid.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
