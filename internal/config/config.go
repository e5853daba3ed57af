// Package config provides centralized configuration for the loader.
// Settings come from environment variables with defaults applied, and the
// whole set is validated on startup so misconfiguration fails fast.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all loader configuration.
type Config struct {
	Database DatabaseConfig
	Load     LoadConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds storage backend connection settings.
type DatabaseConfig struct {
	// Driver selects the backend: postgres, sqlite, or mysql (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the connection string or DSN (required).
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of pooled connections (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection closes (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoadConfig holds load pipeline settings.
type LoadConfig struct {
	// BatchSize is the number of rows per insert batch (default: 100)
	BatchSize int `env:"LOAD_BATCH_SIZE" default:"100"`

	// MaxConcurrent is how many tables load in parallel (default: 1)
	MaxConcurrent int `env:"LOAD_MAX_CONCURRENT" default:"1"`

	// Timeout is the maximum duration for the whole load job (default: 30m)
	Timeout time.Duration `env:"LOAD_TIMEOUT" default:"30m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

var validDrivers = map[string]bool{"postgres": true, "sqlite": true, "mysql": true}

// Validate checks that the configuration is usable.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if !validDrivers[c.Database.Driver] {
		errs = append(errs, fmt.Sprintf("DB_DRIVER (%q) must be one of: postgres, sqlite, mysql", c.Database.Driver))
	}
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Load.BatchSize <= 0 {
		errs = append(errs, "LOAD_BATCH_SIZE must be positive")
	}
	if c.Load.MaxConcurrent <= 0 {
		errs = append(errs, "LOAD_MAX_CONCURRENT must be positive")
	}
	if c.Load.Timeout <= 0 {
		errs = append(errs, "LOAD_TIMEOUT must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a safe representation for logging; the connection string
// is masked since it may embed credentials.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Database: {Driver: %q, URL: [MASKED], MaxConns: %d, MinConns: %d}, Load: {BatchSize: %d, MaxConcurrent: %d, Timeout: %s}, Logging: {Level: %q, Format: %q}}",
		c.Database.Driver, c.Database.MaxConns, c.Database.MinConns,
		c.Load.BatchSize, c.Load.MaxConcurrent, c.Load.Timeout,
		c.Logging.Level, c.Logging.Format,
	)
}
