package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
debug: true
server:
  port: 9001
webembed:
  base_url: "https://embeds.example.com"
  max_width: 640
render:
  selector: "a.embed"
  site_host: "blog.example.com"
cache:
  enabled: true
  ttl: 1h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if !cfg.Debug {
		t.Error("Load() cfg.Debug = false, want true")
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("Load() cfg.Server.Port = %d, want 9001", cfg.Server.Port)
	}
	if cfg.WebEmbed.BaseURL != "https://embeds.example.com" {
		t.Errorf("Load() cfg.WebEmbed.BaseURL = %q", cfg.WebEmbed.BaseURL)
	}
	if cfg.WebEmbed.MaxWidth != 640 {
		t.Errorf("Load() cfg.WebEmbed.MaxWidth = %d, want 640", cfg.WebEmbed.MaxWidth)
	}
	if cfg.Render.Selector != "a.embed" {
		t.Errorf("Load() cfg.Render.Selector = %q, want a.embed", cfg.Render.Selector)
	}
	if cfg.Render.SiteHost != "blog.example.com" {
		t.Errorf("Load() cfg.Render.SiteHost = %q", cfg.Render.SiteHost)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != time.Hour {
		t.Errorf("Load() cache = %+v, want enabled with 1h TTL", cfg.Cache)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "debug: false\n"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Server.Port != defaultServerPort {
		t.Errorf("cfg.Server.Port = %d, want %d", cfg.Server.Port, defaultServerPort)
	}
	if cfg.WebEmbed.BaseURL != defaultAPIBaseURL {
		t.Errorf("cfg.WebEmbed.BaseURL = %q, want %q", cfg.WebEmbed.BaseURL, defaultAPIBaseURL)
	}
	if cfg.WebEmbed.MaxWidth != defaultMaxWidth {
		t.Errorf("cfg.WebEmbed.MaxWidth = %d, want %d", cfg.WebEmbed.MaxWidth, defaultMaxWidth)
	}
	if cfg.Render.Selector != defaultSelector {
		t.Errorf("cfg.Render.Selector = %q, want %q", cfg.Render.Selector, defaultSelector)
	}
	if cfg.Retry.MaxAttempts != defaultRetryAttempts {
		t.Errorf("cfg.Retry.MaxAttempts = %d, want %d", cfg.Retry.MaxAttempts, defaultRetryAttempts)
	}
	if cfg.Cache.TTL != defaultCacheTTL {
		t.Errorf("cfg.Cache.TTL = %v, want %v", cfg.Cache.TTL, defaultCacheTTL)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.Server.Port != defaultServerPort {
		t.Errorf("cfg.Server.Port = %d, want %d", cfg.Server.Port, defaultServerPort)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("WEBEMBED_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REDIS_ENABLED", "yes")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9001\n"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("cfg.Server.Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.WebEmbed.Timeout != 3*time.Second {
		t.Errorf("cfg.WebEmbed.Timeout = %v, want 3s", cfg.WebEmbed.Timeout)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cfg.Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Cache.Redis.Enabled {
		t.Error("cfg.Cache.Redis.Enabled = false, want true from env")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [unclosed\n")); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
		{"relative base url", func(c *Config) { c.WebEmbed.BaseURL = "/api" }, true},
		{"ftp base url", func(c *Config) { c.WebEmbed.BaseURL = "ftp://example.com" }, true},
		{"zero max width", func(c *Config) { c.WebEmbed.MaxWidth = 0 }, true},
		{"negative rate", func(c *Config) { c.WebEmbed.RateLimit = -1 }, true},
		{"zero concurrency", func(c *Config) { c.Render.Concurrency = 0 }, true},
		{"empty selector", func(c *Config) { c.Render.Selector = "" }, true},
		{"redis without address", func(c *Config) {
			c.Cache.Redis.Enabled = true
			c.Cache.Redis.Address = ""
		}, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	if got := GetConfigPath("config.yml"); got != "config.yml" {
		t.Errorf("GetConfigPath() = %q, want config.yml", got)
	}

	t.Setenv("CONFIG_PATH", "/etc/embedder.yml")
	if got := GetConfigPath("config.yml"); got != "/etc/embedder.yml" {
		t.Errorf("GetConfigPath() = %q, want /etc/embedder.yml", got)
	}
}
