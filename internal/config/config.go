// Package config defines process configuration and how it is loaded.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the tier and record backend.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the connection string for non-memory drivers.
	StoreDSN string `koanf:"store_dsn"`

	// AutoMigrate applies pending migrations when the store opens.
	AutoMigrate bool `koanf:"auto_migrate"`

	// MaxDBConns caps the database pool.
	MaxDBConns int `koanf:"max_db_conns"`

	ReadTimeoutMS     int `koanf:"read_timeout_ms"`
	WriteTimeoutMS    int `koanf:"write_timeout_ms"`
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`

	// MetricsNamespace prefixes every exported metric.
	MetricsNamespace string `koanf:"metrics_namespace"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		StoreDriver:       DriverMemory,
		AutoMigrate:       true,
		MaxDBConns:        10,
		ReadTimeoutMS:     10_000,
		WriteTimeoutMS:    10_000,
		ShutdownTimeoutMS: 30_000,
		MetricsNamespace:  "metas",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite, DriverMySQL:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for driver %q", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.MaxDBConns <= 0 {
		return fmt.Errorf("%w: max_db_conns must be positive", ErrInvalidConfig)
	}
	if c.ReadTimeoutMS < 0 || c.WriteTimeoutMS < 0 || c.ShutdownTimeoutMS < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}
