// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	History  HistoryConfig
	Merge    MergeConfig
	Limits   LimitsConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for
	// running merges (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`

	// MaxBodyBytes caps JSON request bodies (default: 1MB)
	MaxBodyBytes int64 `env:"SERVER_MAX_BODY_BYTES" default:"1048576"`

	// DataDir is the directory API requests may read sources from and write
	// targets to. The server does not start without it.
	DataDir string `env:"SERVER_DATA_DIR"`
}

// HistoryConfig selects where merge runs are recorded.
type HistoryConfig struct {
	// DSN is a postgres:// URL, a sqlite: path, a plain file path, or empty
	// for an in-memory history. DATABASE_URL is accepted as a fallback.
	DSN string `env:"HISTORY_DSN" envAlt:"DATABASE_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// MergeConfig holds the default merge options.
type MergeConfig struct {
	// Columns is the canonical column order.
	Columns []string `env:"MERGE_COLUMNS" default:"Kod,ProduktNazwa,Cena,VAT"`

	Delimiter      rune   `env:"MERGE_DELIMITER" default:";"`
	Encoding       string `env:"MERGE_ENCODING" default:"windows-1250"`
	FixedEncoding  string `env:"MERGE_FIXED_ENCODING" default:"utf-8"`
	OutputEncoding string `env:"MERGE_OUTPUT_ENCODING" default:"utf-8"`

	Mode string `env:"MERGE_MODE" default:"append"`

	// DedupKey is the key column; "none" disables dedup (default: Kod)
	DedupKey string `env:"MERGE_DEDUP_KEY" default:"Kod"`

	StrictColumns   bool   `env:"MERGE_STRICT_COLUMNS" default:"false"`
	Match           string `env:"MERGE_MATCH" default:"substring"`
	RejectAmbiguous bool   `env:"MERGE_REJECT_AMBIGUOUS" default:"false"`

	FixedIndexes []int `env:"MERGE_FIXED_INDEXES" default:"0,3,2,4"`

	PreviewRows int `env:"MERGE_PREVIEW_ROWS" default:"5"`

	// Profile is an optional YAML file overlaid on these defaults.
	Profile string `env:"MERGE_PROFILE"`
}

// LimitsConfig bounds merge concurrency.
type LimitsConfig struct {
	// MaxConcurrent is the maximum number of parallel merges (default: 4)
	MaxConcurrent int `env:"MERGE_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long to wait for a merge slot (default: 30s)
	MaxWait time.Duration `env:"MERGE_MAX_WAIT" default:"30s"`

	// Timeout bounds a single merge (default: 10m)
	Timeout time.Duration `env:"MERGE_TIMEOUT" default:"10m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// MergeLimit is requests per minute for the merge endpoint (default: 10)
	MergeLimit int `env:"RATE_LIMIT_MERGE" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey makes every /api request present X-API-Key
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
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

// DataRoot returns DataDir as an absolute path with symlinks resolved.
// It fails when DataDir is unset or is not a directory.
func (c *ServerConfig) DataRoot() (string, error) {
	if c.DataDir == "" {
		return "", errors.New("SERVER_DATA_DIR is not set")
	}
	abs, err := filepath.Abs(c.DataDir)
	if err != nil {
		return "", fmt.Errorf("SERVER_DATA_DIR: %w", err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("SERVER_DATA_DIR: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("SERVER_DATA_DIR: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("SERVER_DATA_DIR %q is not a directory", c.DataDir)
	}
	return root, nil
}
