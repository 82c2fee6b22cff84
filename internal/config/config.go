// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/jobsift/jobsift/internal/model"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Users and filters store (PostgreSQL)
	DatabaseURL   string `env:"DATABASE_URL,required"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Job feed written by the scraper. Defaults to DATABASE_URL.
	JobFeedDatabaseURL string `env:"JOB_FEED_DATABASE_URL"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Per-client rate limiting
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Comma-separated allowed origins; "*" allows any origin.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Starter filter every new user is seeded with.
	StarterFilterVersion string `env:"STARTER_FILTER_VERSION" envDefault:"v1"`

	// Redis streams shared with the scrapers
	FilterEventsEnabled bool `env:"FILTER_EVENTS_ENABLED" envDefault:"true"`
	IngestWorkerEnabled bool `env:"INGEST_WORKER_ENABLED" envDefault:"false"`
	IngestBatchSize     int  `env:"INGEST_BATCH_SIZE" envDefault:"100"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// GetJobFeedDatabaseURL returns the job feed DSN, falling back to DATABASE_URL.
func (c *Config) GetJobFeedDatabaseURL() string {
	if c.JobFeedDatabaseURL != "" {
		return c.JobFeedDatabaseURL
	}
	return c.DatabaseURL
}

// Validate checks values the env tags cannot express.
func (c *Config) Validate() error {
	if _, err := model.StarterFilter(c.StarterFilterVersion); err != nil {
		return fmt.Errorf("STARTER_FILTER_VERSION: %w", err)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}

	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	if c.MaxRequestBodySize <= 0 {
		return errors.New("MAX_REQUEST_BODY_SIZE must be positive")
	}

	if c.IngestWorkerEnabled && c.IngestBatchSize <= 0 {
		return errors.New("INGEST_BATCH_SIZE must be positive when the ingest worker is enabled")
	}

	return nil
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
