// Package config loads converter settings from environment variables.
// Every section has working defaults, so the converter runs with no
// environment at all; the database and S3 are enabled only when configured.
package config

import (
	"net"
	"strconv"
	"time"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds all application configuration.
type Config struct {
	Extract  ExtractConfig
	Output   OutputConfig
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Logging  LoggingConfig
}

// ExtractConfig controls how register pages are turned into rows.
type ExtractConfig struct {
	// SkipLeadingPages drops cover pages (default: 2)
	SkipLeadingPages int `env:"EXTRACT_SKIP_LEADING_PAGES" default:"2"`

	// SkipTrailingPages drops summary pages (default: 1)
	SkipTrailingPages int `env:"EXTRACT_SKIP_TRAILING_PAGES" default:"1"`

	// RowTolerance is the vertical distance in points within which glyphs
	// share a text line (default: 2)
	RowTolerance float64 `env:"EXTRACT_ROW_TOLERANCE" default:"2"`

	// MinRuleLength ignores ruling segments shorter than this (default: 4)
	MinRuleLength float64 `env:"EXTRACT_MIN_RULE_LENGTH" default:"4"`
}

// OutputConfig controls batch conversion and the CSV artifacts.
type OutputConfig struct {
	// InputDir is where batch conversion looks for documents (default: PDF)
	InputDir string `env:"INPUT_DIR" default:"PDF"`

	// Dir is where local artifacts are written (default: CSV)
	Dir string `env:"OUTPUT_DIR" default:"CSV"`

	// BOM prefixes each CSV with a UTF-8 byte order mark (default: false)
	BOM bool `env:"OUTPUT_BOM" default:"false"`

	// Compression is "none" or "gzip" (default: none)
	Compression string `env:"OUTPUT_COMPRESSION" default:"none"`

	// Workers is the number of documents converted at once (default: 4)
	Workers int `env:"OUTPUT_WORKERS" default:"4"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds a single conversion request (default: 2m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"2m"`

	// MaxUploadSize is the largest accepted document in bytes (default: 50MB)
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" default:"52428800"`

	// MaxConcurrentDocuments caps conversions in flight (default: 4)
	MaxConcurrentDocuments int `env:"SERVER_MAX_CONCURRENT_DOCUMENTS" default:"4"`

	// SlotWait is how long a request waits for a conversion slot (default: 10s)
	SlotWait time.Duration `env:"SERVER_SLOT_WAIT" default:"10s"`

	// RateLimit is requests per minute per client IP, 0 disables (default: 60)
	RateLimit int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"60"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP and X-Forwarded-For headers are believed. When empty, the
	// headers are taken from any client.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys is a comma-separated list of keys accepted in X-API-Key.
	// When empty, the API is open.
	APIKeys []string `env:"API_KEYS"`
}

// DatabaseConfig holds the optional PostgreSQL settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; empty disables persistence
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// RetryAttempts is how often to try connecting at startup (default: 5)
	RetryAttempts int           `env:"DB_RETRY_ATTEMPTS" default:"5"`
	RetryInterval time.Duration `env:"DB_RETRY_INTERVAL" default:"2s"`

	// MigrationsTable records applied migrations (default: schema_migrations)
	MigrationsTable string `env:"DB_MIGRATIONS_TABLE" default:"schema_migrations"`
}

// StorageConfig selects where artifacts go.
type StorageConfig struct {
	// Backend is "local" or "s3" (default: local)
	Backend string `env:"STORAGE_BACKEND" default:"local"`

	S3Bucket         string `env:"S3_BUCKET"`
	S3Prefix         string `env:"S3_PREFIX"`
	S3Region         string `env:"S3_REGION" envAlt:"AWS_REGION"`
	S3AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"S3_SECRET_ACCESS_KEY"`
	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" default:"false"`
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
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HasDatabase reports whether persistence is configured.
func (c *DatabaseConfig) HasDatabase() bool {
	return c.URL != ""
}
