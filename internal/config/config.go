// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables (optionally seeded from a
// YAML defaults file) and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Environment names recognised by APP_ENV.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Rate limit store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Database DatabaseConfig
	Security SecurityConfig
	Upstream UpstreamConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// AppConfig holds deployment-level settings.
type AppConfig struct {
	// Env is production or development. Upstream error details are only
	// returned to clients outside production.
	Env string `env:"APP_ENV" envAlt:"NODE_ENV" default:"production"`

	// BaseURL is the public site URL used in the sitemap.
	BaseURL string `env:"SITE_BASE_URL" default:"https://xonixtech.com"`
}

// UploadConfig holds spreadsheet conversion settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the maximum number of parallel conversions (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a conversion slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// RateLimitConfig holds the transliteration endpoint's fixed-window limit.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// Window is the length of one counting window (default: 60s)
	Window time.Duration `env:"RATE_LIMIT_WINDOW" default:"60s"`

	// Max is the number of requests allowed per client per window (default: 30)
	Max int `env:"RATE_LIMIT_MAX" default:"30"`

	// Store selects the counter backend: memory or postgres (default: memory)
	Store string `env:"RATE_LIMIT_STORE" default:"memory"`

	// PruneInterval is how often expired entries are evicted (default: 5m)
	PruneInterval time.Duration `env:"RATE_LIMIT_PRUNE_INTERVAL" default:"5m"`
}

// DatabaseConfig holds the optional PostgreSQL connection used by the
// shared rate limit store.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Required only when
	// RATE_LIMIT_STORE=postgres. Supports DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// AllowedOrigins is the CORS allow-list for the transliteration API.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"https://xonixtech.com,https://www.xonixtech.com"`

	// DevDomain, when set, adds https://<DevDomain> to the allow-list.
	DevDomain string `env:"REPLIT_DEV_DOMAIN"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// UpstreamConfig holds the generative-language API settings.
type UpstreamConfig struct {
	// APIKey is the upstream credential. It is not required at startup; its
	// absence is reported per request as "Server not configured".
	APIKey string `env:"GOOGLE_API_KEY"`

	// Endpoint is the API base URL.
	Endpoint string `env:"UPSTREAM_ENDPOINT" default:"https://generativelanguage.googleapis.com"`

	// Model is the model name used for generateContent.
	Model string `env:"UPSTREAM_MODEL" default:"gemini-1.5-flash"`

	// Timeout bounds one upstream call including pacing (default: 8s)
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT" default:"8s"`

	// RequestsPerSecond paces outbound calls process-wide (default: 10)
	RequestsPerSecond int `env:"UPSTREAM_REQUESTS_PER_SECOND" default:"10"`

	// Burst is the outbound token bucket size (default: 10)
	Burst int `env:"UPSTREAM_BURST" default:"10"`
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
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// IsProduction reports whether the app runs with production settings.
func (c *AppConfig) IsProduction() bool {
	return c.Env != EnvDevelopment
}

// Origins returns the effective CORS allow-list, including the dev domain.
func (c *SecurityConfig) Origins() []string {
	origins := make([]string, 0, len(c.AllowedOrigins)+1)
	origins = append(origins, c.AllowedOrigins...)
	if c.DevDomain != "" {
		origins = append(origins, "https://"+c.DevDomain)
	}
	return origins
}
