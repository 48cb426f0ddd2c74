package internal

import (
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	config := DefaultConfig()
	if err := config.ValidateConfig(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if config.RefreshInterval != 2*time.Second {
		t.Errorf("RefreshInterval = %v, want 2s", config.RefreshInterval)
	}
	if config.RequestTimeout != 600*time.Second {
		t.Errorf("RequestTimeout = %v, want 600s", config.RequestTimeout)
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("LINKFETCH_DOWNLOAD_DIR", "/srv/dl")
	t.Setenv("LINKFETCH_TIMEOUT", "30")
	t.Setenv("LINKFETCH_REFRESH", "500ms")
	t.Setenv("LINKFETCH_MAX_TRANSFERS", "8")
	t.Setenv("LINKFETCH_S3_PATH_STYLE", "true")
	t.Setenv("LINKFETCH_DEBUG", "1")
	t.Setenv("LINKFETCH_RATE_LIMIT", "5M")

	config := DefaultConfig()
	config.LoadFromEnv()

	if config.DownloadDir != "/srv/dl" {
		t.Errorf("DownloadDir = %q", config.DownloadDir)
	}
	if config.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", config.RequestTimeout)
	}
	if config.RefreshInterval != 500*time.Millisecond {
		t.Errorf("RefreshInterval = %v, want 500ms", config.RefreshInterval)
	}
	if config.MaxTransfers != 8 {
		t.Errorf("MaxTransfers = %d, want 8", config.MaxTransfers)
	}
	if !config.S3PathStyle || !config.EnableDebug {
		t.Error("boolean env vars should be parsed")
	}
	if config.RateLimit != "5M" {
		t.Errorf("RateLimit = %q, want 5M", config.RateLimit)
	}
}

func TestConfig_LoadFromEnvIgnoresInvalid(t *testing.T) {
	t.Setenv("LINKFETCH_MAX_TRANSFERS", "99")
	t.Setenv("LINKFETCH_TIMEOUT", "soon")

	config := DefaultConfig()
	config.LoadFromEnv()

	if config.MaxTransfers != 4 {
		t.Errorf("out of range value should be ignored, got %d", config.MaxTransfers)
	}
	if config.RequestTimeout != 600*time.Second {
		t.Errorf("unparsable timeout should be ignored, got %v", config.RequestTimeout)
	}
}

func TestConfig_ValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty_dir", func(c *Config) { c.DownloadDir = " " }, "download_dir"},
		{"too_many_transfers", func(c *Config) { c.MaxTransfers = 33 }, "max_transfers"},
		{"zero_refresh", func(c *Config) { c.RefreshInterval = 0 }, "refresh"},
		{"tiny_ceiling", func(c *Config) { c.BackoffCeiling = time.Second }, "backoff_ceiling"},
		{"bad_proxy_scheme", func(c *Config) { c.ProxyURL = "ftp://proxy:21" }, "proxy_url"},
		{"half_credentials", func(c *Config) { c.S3AccessKey = "AKIA" }, "s3_credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.ValidateConfig()
			if err == nil {
				t.Fatal("expected validation error")
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}
