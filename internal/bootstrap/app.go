package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/embedder/internal/cache"
	"github.com/jonesrussell/north-cloud/embedder/internal/circuitbreaker"
	"github.com/jonesrussell/north-cloud/embedder/internal/config"
	"github.com/jonesrussell/north-cloud/embedder/internal/httpclient"
	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
	"github.com/jonesrussell/north-cloud/embedder/internal/render"
	"github.com/jonesrussell/north-cloud/embedder/internal/retry"
	"github.com/jonesrussell/north-cloud/embedder/internal/telemetry"
	"github.com/jonesrussell/north-cloud/embedder/internal/webembed"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config   *config.Config
	Logger   logger.Logger
	Metrics  *telemetry.Metrics
	Client   *webembed.Client
	Resolver webembed.Resolver
	// Cache is nil when caching is disabled.
	Cache    cache.Cache
	Redis    *cache.RedisCache
	Renderer *render.Renderer

	closers []func() error
}

// NewApp builds every component from cfg.
func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: telemetry.NewMetrics(),
	}

	app.Client = SetupEmbedClient(cfg, app.Metrics, log)
	app.Resolver = app.Client

	if cfg.Cache.Enabled {
		app.setupCache(ctx)
		app.Resolver = cache.NewCachingResolver(app.Client, app.Client, app.Cache, app.Metrics, log)
	}

	app.Renderer = render.New(app.Resolver, render.Options{
		Selector:             cfg.Render.Selector,
		SiteHost:             cfg.Render.SiteHost,
		Concurrency:          cfg.Render.Concurrency,
		IframeResizer:        cfg.Render.IframeResizer.Enabled,
		IframeResizerBaseURL: cfg.Render.IframeResizer.BaseURL,
		Metrics:              app.Metrics,
		Logger:               log,
	})

	return app, nil
}

// SetupEmbedClient creates the embed API client from configuration.
func SetupEmbedClient(cfg *config.Config, metrics *telemetry.Metrics, log logger.Logger) *webembed.Client {
	return webembed.New(webembed.Options{
		BaseURL:      cfg.WebEmbed.BaseURL,
		MaxWidth:     cfg.WebEmbed.MaxWidth,
		UserAgent:    cfg.WebEmbed.UserAgent,
		RateLimit:    cfg.WebEmbed.RateLimit,
		RateBurst:    cfg.WebEmbed.RateBurst,
		MaxBodyBytes: cfg.WebEmbed.MaxBodyBytes,
		Retry: retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		},
		Breaker: circuitbreaker.Config{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Breaker.SuccessThreshold,
			Timeout:          cfg.Breaker.Timeout,
		},
		HTTPClient: httpclient.New(httpclient.Config{Timeout: cfg.WebEmbed.Timeout}),
		Metrics:    metrics,
		Logger:     log,
	})
}

// setupCache prefers Redis and falls back to memory when Redis is disabled
// or unreachable.
func (a *App) setupCache(ctx context.Context) {
	cfg := a.Config.Cache

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err == nil {
			a.Redis = cache.NewRedisCache(client, cfg.TTL, a.Logger)
			a.Cache = a.Redis
			a.closers = append(a.closers, client.Close)
			a.Logger.Info("Embed cache using Redis",
				logger.String("redis_address", cfg.Redis.Address),
				logger.Duration("ttl", cfg.TTL),
			)
			return
		}

		a.Logger.Warn("Redis not available, using in-memory embed cache",
			logger.String("redis_address", cfg.Redis.Address),
			logger.Error(err),
		)
	}

	a.Cache = cache.NewMemoryCache(cfg.TTL)
	a.Logger.Info("Embed cache using memory", logger.Duration("ttl", cfg.TTL))
}

// Close releases external connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close app: %w", errors.Join(errs...))
	}
	return nil
}
