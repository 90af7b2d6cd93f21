// Package api wires the embedder HTTP routes.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/embedder/internal/server"
	"github.com/jonesrussell/north-cloud/embedder/internal/telemetry"
)

// SetupRoutes registers the API and metrics routes. /api/v1 requires a JWT
// when jwtSecret is set; /metrics and /health stay public.
func SetupRoutes(router *gin.Engine, h *EmbedHandler, metrics *telemetry.Metrics, jwtSecret string) {
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	v1 := server.ProtectedGroup(router, "/api/v1", jwtSecret)
	v1.GET("/providers", h.ListProviders)
	v1.GET("/embed", h.Embed)
	v1.POST("/render", h.Render)
	v1.DELETE("/cache", h.FlushCache)
}
