// Package config loads server settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "neco.yaml"

// Config holds all configuration values for the server.
type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	HTTPPort    int    `mapstructure:"http_port"`

	RedisURL  string `mapstructure:"redis_url"`
	QueueName string `mapstructure:"queue_name"`

	SupabaseURL       string `mapstructure:"supabase_url"`
	SupabaseAnonKey   string `mapstructure:"supabase_anon_key"`
	SupabaseJWTSecret string `mapstructure:"supabase_jwt_secret"`

	// Shared secret for the result callback. Empty disables the route.
	InternalSecret string `mapstructure:"internal_secret"`

	DispatchConcurrency int           `mapstructure:"dispatch_concurrency"`
	ExecutionTimeout    time.Duration `mapstructure:"execution_timeout"`
	ReaperSchedule      string        `mapstructure:"reaper_schedule"`

	NodeCacheTTL  time.Duration `mapstructure:"node_cache_ttl"`
	NodeCacheSize int           `mapstructure:"node_cache_size"`

	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	OTELEndpoint string `mapstructure:"otel_endpoint"`

	CookieSecure bool   `mapstructure:"cookie_secure"`
	CookieDomain string `mapstructure:"cookie_domain"`
}

// envKeys maps config keys to the environment variables that override them.
var envKeys = map[string]string{
	"database_url":         "DATABASE_URL",
	"http_port":            "PORT",
	"redis_url":            "REDIS_URL",
	"queue_name":           "QUEUE_NAME",
	"supabase_url":         "SUPABASE_URL",
	"supabase_anon_key":    "SUPABASE_ANON_KEY",
	"supabase_jwt_secret":  "SUPABASE_JWT_SECRET",
	"internal_secret":      "INTERNAL_SECRET",
	"dispatch_concurrency": "DISPATCH_CONCURRENCY",
	"execution_timeout":    "EXECUTION_TIMEOUT",
	"reaper_schedule":      "REAPER_SCHEDULE",
	"node_cache_ttl":       "NODE_CACHE_TTL",
	"node_cache_size":      "NODE_CACHE_SIZE",
	"rate_limit":           "RATE_LIMIT",
	"rate_limit_burst":     "RATE_LIMIT_BURST",
	"otel_endpoint":        "OTEL_EXPORTER_OTLP_ENDPOINT",
	"cookie_secure":        "COOKIE_SECURE",
	"cookie_domain":        "COOKIE_DOMAIN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 6161)
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("queue_name", "queue:main")
	v.SetDefault("dispatch_concurrency", 4)
	v.SetDefault("execution_timeout", 30*time.Minute)
	v.SetDefault("reaper_schedule", "@every 1m")
	v.SetDefault("node_cache_ttl", 5*time.Minute)
	v.SetDefault("node_cache_size", 256)
	v.SetDefault("rate_limit", 20.0)
	v.SetDefault("rate_limit_burst", 40)
	v.SetDefault("otel_endpoint", "localhost:4317")
	v.SetDefault("cookie_secure", true)
}

// Load reads the configuration. If path is empty, DefaultFile is used when
// present; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("neco")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read %s: %w", DefaultFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"database_url", c.DatabaseURL},
		{"supabase_url", c.SupabaseURL},
		{"supabase_anon_key", c.SupabaseAnonKey},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required (env: %s)", r.key, envKeys[r.key])
		}
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port %d", c.HTTPPort)
	}
	if c.DispatchConcurrency < 1 {
		return fmt.Errorf("dispatch_concurrency must be >= 1, got %d", c.DispatchConcurrency)
	}
	if c.ExecutionTimeout <= 0 {
		return fmt.Errorf("execution_timeout must be positive, got %s", c.ExecutionTimeout)
	}
	if _, err := cron.ParseStandard(c.ReaperSchedule); err != nil {
		return fmt.Errorf("invalid reaper_schedule %q: %w", c.ReaperSchedule, err)
	}
	if c.RateLimit <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate_limit and rate_limit_burst must be positive")
	}
	return nil
}
