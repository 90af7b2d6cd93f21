// Package config holds the embedder service configuration and its loader.
// Values come from a YAML file, then .env files, then the process environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	defaultServerPort       = 8095
	defaultServerTimeout    = 30 * time.Second
	defaultAPIBaseURL       = "https://webembeds.com"
	defaultMaxWidth         = 800
	defaultAPITimeout       = 10 * time.Second
	defaultUserAgent        = "Mozilla/5.0 (compatible; North-Cloud-Embedder/1.0)"
	defaultRateLimit        = 10.0
	defaultRateBurst        = 20
	defaultMaxBodyBytes     = 2 << 20
	defaultRetryAttempts    = 3
	defaultRetryDelay       = 200 * time.Millisecond
	defaultRetryMaxDelay    = 2 * time.Second
	defaultBreakerFailures  = 5
	defaultBreakerSuccesses = 2
	defaultBreakerTimeout   = 30 * time.Second
	defaultCacheTTL         = 24 * time.Hour
	defaultRedisAddress     = "localhost:6379"
	defaultSelector         = "a.embed-card"
	defaultConcurrency      = 4
	defaultServiceName      = "embedder"
)

// Config is the root configuration for the embedder service.
type Config struct {
	Debug    bool           `env:"APP_DEBUG" yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	WebEmbed WebEmbedConfig `yaml:"webembed"`
	Retry    RetryConfig    `yaml:"retry"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Cache    CacheConfig    `yaml:"cache"`
	Render   RenderConfig   `yaml:"render"`
	Auth     AuthConfig     `yaml:"auth"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"  yaml:"host"`
	Port         int           `env:"SERVER_PORT"  yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

// WebEmbedConfig configures the outbound embed API client.
type WebEmbedConfig struct {
	BaseURL      string        `env:"WEBEMBED_BASE_URL"   yaml:"base_url"`
	MaxWidth     int           `env:"WEBEMBED_MAX_WIDTH"  yaml:"max_width"`
	Timeout      time.Duration `env:"WEBEMBED_TIMEOUT"    yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	RateLimit    float64       `env:"WEBEMBED_RATE_LIMIT" yaml:"rate_limit"` // requests per second
	RateBurst    int           `yaml:"rate_burst"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

type RetryConfig struct {
	MaxAttempts  int           `env:"WEBEMBED_RETRY_ATTEMPTS" yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// CacheConfig controls caching of resolved embeds.
// With Redis disabled an in-process cache is used.
type CacheConfig struct {
	Enabled bool          `env:"CACHE_ENABLED" yaml:"enabled"`
	TTL     time.Duration `env:"CACHE_TTL"     yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED"  yaml:"enabled"`
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// RenderConfig controls document rewriting.
type RenderConfig struct {
	Selector    string `env:"RENDER_SELECTOR"    yaml:"selector"`
	Concurrency int    `env:"RENDER_CONCURRENCY" yaml:"concurrency"`
	// SiteHost is the public host pages are served from. It is forwarded for
	// providers (twitch) that only play when embedded on a declared parent.
	SiteHost      string              `env:"RENDER_SITE_HOST" yaml:"site_host"`
	IframeResizer IframeResizerConfig `yaml:"iframe_resizer"`
}

type IframeResizerConfig struct {
	Enabled bool   `env:"IFRAME_RESIZER_ENABLED" yaml:"enabled"`
	BaseURL string `env:"NEXT_PUBLIC_BASE_URL"   yaml:"base_url"`
}

type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

type TracingConfig struct {
	// Endpoint is an OTLP/HTTP collector host:port. Empty disables export.
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" yaml:"endpoint"`
	Insecure    bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" yaml:"insecure"`
	ServiceName string `env:"OTEL_SERVICE_NAME"           yaml:"service_name"`
}

type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" yaml:"level"`
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}

	u, err := url.Parse(c.WebEmbed.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webembed.base_url %q must be an absolute http(s) URL", c.WebEmbed.BaseURL)
	}
	if c.WebEmbed.MaxWidth <= 0 {
		return errors.New("webembed.max_width must be positive")
	}
	if c.WebEmbed.RateLimit < 0 {
		return errors.New("webembed.rate_limit must not be negative")
	}
	if c.Render.Concurrency <= 0 {
		return errors.New("render.concurrency must be positive")
	}
	if c.Render.Selector == "" {
		return errors.New("render.selector is required")
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Address == "" {
		return errors.New("cache.redis.address is required when redis is enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("logging.level %q must be one of: debug, info, warn, error, fatal", c.Logging.Level)
	}

	return nil
}

// Load reads the config file at path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns a validated configuration built only from defaults.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	setServerDefaults(&cfg.Server)
	setWebEmbedDefaults(&cfg.WebEmbed)

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = defaultRetryAttempts
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = defaultRetryDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = defaultRetryMaxDelay
	}

	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = defaultBreakerFailures
	}
	if cfg.Breaker.SuccessThreshold == 0 {
		cfg.Breaker.SuccessThreshold = defaultBreakerSuccesses
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker.Timeout = defaultBreakerTimeout
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = defaultCacheTTL
	}
	if cfg.Cache.Redis.Address == "" {
		cfg.Cache.Redis.Address = defaultRedisAddress
	}

	if cfg.Render.Selector == "" {
		cfg.Render.Selector = defaultSelector
	}
	if cfg.Render.Concurrency == 0 {
		cfg.Render.Concurrency = defaultConcurrency
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = defaultServiceName
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func setServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = defaultServerPort
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = defaultServerTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = defaultServerTimeout
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"*"}
	}
}

func setWebEmbedDefaults(w *WebEmbedConfig) {
	if w.BaseURL == "" {
		w.BaseURL = defaultAPIBaseURL
	}
	if w.MaxWidth == 0 {
		w.MaxWidth = defaultMaxWidth
	}
	if w.Timeout == 0 {
		w.Timeout = defaultAPITimeout
	}
	if w.UserAgent == "" {
		w.UserAgent = defaultUserAgent
	}
	if w.RateLimit == 0 {
		w.RateLimit = defaultRateLimit
	}
	if w.RateBurst == 0 {
		w.RateBurst = defaultRateBurst
	}
	if w.MaxBodyBytes == 0 {
		w.MaxBodyBytes = defaultMaxBodyBytes
	}
}
