package bootstrap

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/embedder/internal/api"
	"github.com/jonesrussell/north-cloud/embedder/internal/config"
	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
	"github.com/jonesrussell/north-cloud/embedder/internal/server"
	"github.com/jonesrussell/north-cloud/embedder/internal/telemetry"
)

// SetupHTTPServer builds the HTTP server for app.
func SetupHTTPServer(app *App) *server.Server {
	cfg := app.Config

	builder := server.NewBuilder(serviceName, cfg.Server.Port).
		WithHost(cfg.Server.Host).
		WithLogger(app.Logger).
		WithDebug(cfg.Debug).
		WithVersion(Version).
		WithCORSOrigins(cfg.Server.CORSOrigins).
		WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, 0).
		WithMiddleware(app.Metrics.GinMiddleware()).
		WithHealthCheck("embed_api", server.BreakerHealthChecker(func() string {
			return app.Client.BreakerState().String()
		}))

	if app.Redis != nil {
		builder = builder.WithHealthCheck("redis", server.RedisHealthChecker(app.Redis.Ping))
	}

	handler := api.NewEmbedHandler(app.Resolver, app.Renderer, app.Cache)

	return builder.WithRoutes(func(router *gin.Engine) {
		api.SetupRoutes(router, handler, app.Metrics, cfg.Auth.JWTSecret)
	}).Build()
}

// Serve runs the HTTP service until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     Version,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		//nolint:contextcheck // ctx is done by the time tracing is flushed.
		if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
			log.Warn("Failed to flush traces", logger.Error(shutdownErr))
		}
	}()

	app, err := NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			log.Error("Failed to close resources", logger.Error(closeErr))
		}
	}()

	srv := SetupHTTPServer(app)

	if runErr := srv.Run(ctx); runErr != nil {
		log.Error("Server error", logger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}

	log.Info("Server exited")
	return nil
}
