// Package config provides centralized configuration management for the
// application. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Ingest    IngestConfig
	Inference InferenceConfig
	Rate      RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response. Report
	// generation can take a while, hence the generous default (default: 5m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 5m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`
}

// DatabaseConfig holds the profile store connection settings. The database
// is optional: without a URL the service runs with profiles disabled.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// IngestConfig holds spreadsheet upload settings.
type IngestConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 100MB)
	MaxFileSize int64 `env:"INGEST_MAX_FILE_SIZE" default:"104857600"`
}

// InferenceConfig holds the review engine settings.
type InferenceConfig struct {
	// APIKey authenticates against the Gemini API. Without a key the
	// review endpoints are disabled.
	// Supports both GEMINI_API_KEY and GOOGLE_GENAI_API_KEY for compatibility.
	APIKey string `env:"GEMINI_API_KEY" envAlt:"GOOGLE_GENAI_API_KEY"`

	// Model is the Gemini model name (default: gemini-1.5-flash)
	Model string `env:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	// BaseURL is the Gemini REST endpoint.
	BaseURL string `env:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`

	// BatchSize is how many rows are reviewed in flight at once (default: 3)
	BatchSize int `env:"INFERENCE_BATCH_SIZE" default:"3"`

	// Cooldown is the pause between batches to respect the downstream
	// rate limit (default: 2s)
	Cooldown time.Duration `env:"INFERENCE_COOLDOWN" default:"2s"`

	// RequestTimeout bounds a single model call (default: 60s)
	RequestTimeout time.Duration `env:"INFERENCE_REQUEST_TIMEOUT" default:"60s"`

	// MaxAttachmentSize caps fetched link documents in bytes (default: 20MB)
	MaxAttachmentSize int64 `env:"INFERENCE_MAX_ATTACHMENT_SIZE" default:"20971520"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
