package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
)

// Builder assembles a Server.
type Builder struct {
	config       *Config
	logger       logger.Logger
	setupRoutes  func(*gin.Engine)
	healthChecks map[string]HealthChecker
	middleware   []gin.HandlerFunc
}

// NewBuilder starts a builder for serviceName listening on port.
func NewBuilder(serviceName string, port int) *Builder {
	return &Builder{
		config:       NewConfig(serviceName, port),
		healthChecks: make(map[string]HealthChecker),
	}
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(log logger.Logger) *Builder {
	b.logger = log
	return b
}

// WithHost sets the bind interface.
func (b *Builder) WithHost(host string) *Builder {
	b.config.Host = host
	return b
}

func (b *Builder) WithDebug(debug bool) *Builder {
	b.config.Debug = debug
	return b
}

func (b *Builder) WithVersion(version string) *Builder {
	b.config.ServiceVersion = version
	return b
}

// WithCORSOrigins sets allowed CORS origins.
func (b *Builder) WithCORSOrigins(origins []string) *Builder {
	b.config.CORS.AllowedOrigins = origins
	return b
}

// WithTimeouts sets read, write and idle timeouts. Zero keeps the default.
func (b *Builder) WithTimeouts(read, write, idle time.Duration) *Builder {
	if read > 0 {
		b.config.ReadTimeout = read
	}
	if write > 0 {
		b.config.WriteTimeout = write
	}
	if idle > 0 {
		b.config.IdleTimeout = idle
	}
	return b
}

// WithHealthCheck adds a named check to /health.
func (b *Builder) WithHealthCheck(name string, checker HealthChecker) *Builder {
	b.healthChecks[name] = checker
	return b
}

// WithMiddleware adds middleware after the standard chain.
func (b *Builder) WithMiddleware(mw ...gin.HandlerFunc) *Builder {
	b.middleware = append(b.middleware, mw...)
	return b
}

// WithRoutes sets the route setup function.
func (b *Builder) WithRoutes(setupRoutes func(*gin.Engine)) *Builder {
	b.setupRoutes = setupRoutes
	return b
}

// Build creates the server.
func (b *Builder) Build() *Server {
	if b.logger == nil {
		b.logger = logger.Must(logger.Config{Level: "info", Development: b.config.Debug})
	}

	return NewServer(b.config, b.logger, func(router *gin.Engine) {
		router.Use(b.middleware...)

		RegisterHealthRoutes(router, HealthOptions{
			ServiceName:    b.config.ServiceName,
			ServiceVersion: b.config.ServiceVersion,
			Checks:         b.healthChecks,
		})

		if b.setupRoutes != nil {
			b.setupRoutes(router)
		}
	})
}
