// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Record source backends.
const (
	SourceMemory   = "memory"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
	SourceS3       = "s3"
)

// Config holds all folderview configuration.
type Config struct {
	// Browsing
	Source      string
	RootPath    string
	BulkDelete  bool // platform offers a batch-delete confirmation
	FetchBuffer int

	// Logging
	LogLevel  string
	LogFormat string

	// Metrics (empty disables the listener)
	MetricsAddr string

	// SQLite
	SQLitePath string

	// PostgreSQL
	DatabaseURL string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Source:      envOr("FOLDERVIEW_SOURCE", SourceSQLite),
		RootPath:    envOr("ROOT_PATH", "/"),
		BulkDelete:  envBool("BULK_DELETE", false),
		FetchBuffer: envInt("FETCH_BUFFER", 64),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "console"),
		MetricsAddr: envOr("METRICS_ADDR", ""),
		SQLitePath:  envOr("SQLITE_PATH", "folderview.db"),
		DatabaseURL: envOr("DATABASE_URL", ""),
		S3Endpoint:  envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:    envOr("S3_BUCKET", "folderview"),
		S3AccessKey: envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey: envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:    envOr("S3_REGION", "us-east-1"),
		S3UseSSL:    envBool("S3_USE_SSL", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks source-specific requirements.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceMemory:
	case SourceSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite source")
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres source")
		}
	case SourceS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 source")
		}
	default:
		return fmt.Errorf("unknown FOLDERVIEW_SOURCE %q", c.Source)
	}
	if c.FetchBuffer < 1 {
		return fmt.Errorf("FETCH_BUFFER must be positive, got %d", c.FetchBuffer)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
