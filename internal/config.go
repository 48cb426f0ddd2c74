package internal

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	DownloadDir     string
	RequestTimeout  time.Duration
	RefreshInterval time.Duration
	BackoffCeiling  time.Duration
	MaxTransfers    int
	MaxRetries      int
	RateLimit       string
	ProxyURL        string

	// S3 backend
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PathStyle bool
	ExportTTL   time.Duration

	MetricsAddr string

	// Logging configuration
	LogLevel    string
	EnableDebug bool
	QuietMode   bool
	LogFile     string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DownloadDir:     "downloads",
		RequestTimeout:  600 * time.Second,
		RefreshInterval: 2 * time.Second,
		BackoffCeiling:  64 * time.Second,
		MaxTransfers:    4,
		MaxRetries:      5,
		S3Region:        "us-east-1",
		ExportTTL:       time.Hour,

		LogLevel:    "info",
		EnableDebug: false,
		QuietMode:   false,
		LogFile:     "", // Empty means stderr
	}
}

// LoadFromEnv loads configuration from LINKFETCH_* environment variables
func (c *Config) LoadFromEnv() {
	if dir := os.Getenv("LINKFETCH_DOWNLOAD_DIR"); dir != "" {
		c.DownloadDir = dir
	}

	if d, ok := envDuration("LINKFETCH_TIMEOUT"); ok {
		c.RequestTimeout = d
	}
	if d, ok := envDuration("LINKFETCH_REFRESH"); ok {
		c.RefreshInterval = d
	}
	if d, ok := envDuration("LINKFETCH_BACKOFF_CEILING"); ok {
		c.BackoffCeiling = d
	}
	if d, ok := envDuration("LINKFETCH_EXPORT_TTL"); ok {
		c.ExportTTL = d
	}

	if n := os.Getenv("LINKFETCH_MAX_TRANSFERS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 && v <= 32 {
			c.MaxTransfers = v
		}
	}

	if n := os.Getenv("LINKFETCH_MAX_RETRIES"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v >= 0 {
			c.MaxRetries = v
		}
	}

	c.RateLimit = GetEnvWithDefault("LINKFETCH_RATE_LIMIT", c.RateLimit)
	c.ProxyURL = GetEnvWithDefault("LINKFETCH_PROXY", c.ProxyURL)
	c.S3Region = GetEnvWithDefault("LINKFETCH_S3_REGION", c.S3Region)
	c.S3Endpoint = GetEnvWithDefault("LINKFETCH_S3_ENDPOINT", c.S3Endpoint)
	c.S3AccessKey = GetEnvWithDefault("LINKFETCH_S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = GetEnvWithDefault("LINKFETCH_S3_SECRET_KEY", c.S3SecretKey)
	if v := os.Getenv("LINKFETCH_S3_PATH_STYLE"); v != "" {
		c.S3PathStyle = parseBool(v)
	}
	c.MetricsAddr = GetEnvWithDefault("LINKFETCH_METRICS_ADDR", c.MetricsAddr)

	if logLevel := os.Getenv("LINKFETCH_LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if debug := os.Getenv("LINKFETCH_DEBUG"); debug != "" {
		c.EnableDebug = parseBool(debug)
	}
	if quiet := os.Getenv("LINKFETCH_QUIET"); quiet != "" {
		c.QuietMode = parseBool(quiet)
	}
	if logFile := os.Getenv("LINKFETCH_LOG_FILE"); logFile != "" {
		c.LogFile = logFile
	}
}

// GetEnvWithDefault returns environment variable value or default
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envDuration accepts Go durations ("90s") and plain seconds ("90")
func envDuration(key string) (time.Duration, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}

func parseBool(v string) bool {
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

// ValidateConfig validates the configuration values
func (c *Config) ValidateConfig() error {
	if strings.TrimSpace(c.DownloadDir) == "" {
		return NewValidationError("download_dir", "download directory cannot be empty").
			WithSuggestion("Set --download-dir or LINKFETCH_DOWNLOAD_DIR")
	}

	if c.MaxTransfers < 1 || c.MaxTransfers > 32 {
		return NewValidationErrorWithValue("max_transfers", "must be between 1 and 32", c.MaxTransfers)
	}

	if c.MaxRetries < 0 {
		return NewValidationErrorWithValue("max_retries", "must be >= 0", c.MaxRetries)
	}

	if c.RequestTimeout <= 0 {
		return NewValidationErrorWithValue("timeout", "must be > 0", c.RequestTimeout)
	}

	if c.RefreshInterval <= 0 {
		return NewValidationErrorWithValue("refresh", "must be > 0", c.RefreshInterval)
	}

	if c.BackoffCeiling < 2*time.Second {
		return NewValidationErrorWithValue("backoff_ceiling", "must be at least 2s", c.BackoffCeiling)
	}

	if c.ProxyURL != "" {
		parsed, err := url.Parse(c.ProxyURL)
		if err != nil || parsed.Host == "" {
			return NewValidationErrorWithValue("proxy_url", "invalid proxy URL", c.ProxyURL)
		}
		switch parsed.Scheme {
		case "http", "https", "socks5":
		default:
			return NewValidationErrorWithValue("proxy_url", fmt.Sprintf("unsupported proxy scheme %q", parsed.Scheme), c.ProxyURL).
				WithSuggestion("Use formats like http://proxy:8080 or socks5://proxy:1080")
		}
	}

	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return NewValidationError("s3_credentials", "access key and secret key must be set together")
	}

	return nil
}
