// Package config provides centralized configuration management for the
// application. Defaults are applied first, then an optional YAML file
// (BANK_CONFIG_FILE), then environment variables; the result is
// validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	Pool     PoolConfig      `yaml:"pool"`
	Rate     RateLimitConfig `yaml:"rate"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `yaml:"port" env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `yaml:"readTimeout" env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `yaml:"idleTimeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and BANK_DB_URL env vars for compatibility
	URL string `yaml:"url" env:"DATABASE_URL" envAlt:"BANK_DB_URL" required:"true"`

	// InitSchema runs the embedded schema statements on startup (default: false)
	InitSchema bool `yaml:"initSchema" env:"DB_INIT_SCHEMA" default:"false"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	// Size is the fixed number of pooled connections (default: 10)
	Size int `yaml:"size" env:"POOL_SIZE" default:"10"`

	// WaitForConn makes callers block for a free connection instead of
	// failing fast on exhaustion (default: false)
	WaitForConn bool `yaml:"waitForConn" env:"POOL_WAIT_FOR_CONN" default:"false"`

	// AcquireTimeout bounds the wait when WaitForConn is set (default: 5s)
	AcquireTimeout time.Duration `yaml:"acquireTimeout" env:"POOL_ACQUIRE_TIMEOUT" default:"5s"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the sustained rate limit per client IP (default: 120)
	RequestsPerMinute int `yaml:"requestsPerMinute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// Burst is the number of requests a client may send above the
	// sustained rate before being throttled (default: 20)
	Burst int `yaml:"burst" env:"RATE_LIMIT_BURST" default:"20"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + strconv.Itoa(c.Port)
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}
