package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/embedder/internal/cache"
	"github.com/jonesrussell/north-cloud/embedder/internal/circuitbreaker"
	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
	"github.com/jonesrussell/north-cloud/embedder/internal/provider"
	"github.com/jonesrussell/north-cloud/embedder/internal/render"
	"github.com/jonesrussell/north-cloud/embedder/internal/webembed"
)

const (
	// maxRenderBody bounds POST /render payloads.
	maxRenderBody = 5 << 20
	// statusClientClosedRequest is nginx's code for a client that went away
	// before the response was written.
	statusClientClosedRequest = 499
)

// EmbedHandler serves the embed endpoints.
type EmbedHandler struct {
	resolver webembed.Resolver
	renderer *render.Renderer
	cache    cache.Cache
}

// NewEmbedHandler creates the handler. c may be nil when caching is off.
// Handlers log through the request-scoped logger.
func NewEmbedHandler(resolver webembed.Resolver, renderer *render.Renderer, c cache.Cache) *EmbedHandler {
	return &EmbedHandler{
		resolver: resolver,
		renderer: renderer,
		cache:    c,
	}
}

// RenderRequest is the POST /render body.
type RenderRequest struct {
	HTML     string `binding:"required" json:"html"`
	Host     string `json:"host"`
	Selector string `json:"selector"`
}

// ListProviders returns the supported domains.
func (h *EmbedHandler) ListProviders(c *gin.Context) {
	domains := provider.Domains()
	c.JSON(http.StatusOK, gin.H{
		"providers": domains,
		"count":     len(domains),
	})
}

// Embed resolves a single link.
func (h *EmbedHandler) Embed(c *gin.Context) {
	req := webembed.Request{
		URL:      c.Query("url"),
		SiteHost: c.Query("host"),
	}

	embed, err := h.resolver.Resolve(c.Request.Context(), req)
	if err != nil {
		status, message := resolveErrorStatus(err)
		log := logger.FromContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			log.Warn("Embed lookup failed", logger.String("url", req.URL), logger.Error(err))
		} else {
			log.Debug("Rejected embed lookup", logger.String("url", req.URL), logger.Error(err))
		}
		c.JSON(status, gin.H{"error": message, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, embed)
}

// Render rewrites the embed anchors in a posted document.
func (h *EmbedHandler) Render(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRenderBody)

	var body RenderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.renderer.RenderDocument(c.Request.Context(), body.HTML, render.RenderOptions{
		Selector: body.Selector,
		SiteHost: body.Host,
	})
	if err != nil {
		switch {
		case errors.Is(err, render.ErrEmptyDocument), errors.Is(err, render.ErrInvalidSelector):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document", "details": err.Error()})
		case errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Render timed out"})
		case errors.Is(err, context.Canceled):
			logger.FromContext(c.Request.Context()).Debug("Render cancelled by client", logger.Error(err))
			c.JSON(statusClientClosedRequest, gin.H{"error": "Request cancelled"})
		default:
			logger.FromContext(c.Request.Context()).Error("Render failed", logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render document"})
		}
		return
	}

	logger.FromContext(c.Request.Context()).Debug("Document rendered",
		logger.Int("found", result.Stats.Found),
		logger.Int("embedded", result.Stats.Embedded),
		logger.Int("skipped", result.Stats.Skipped),
	)

	c.JSON(http.StatusOK, result)
}

// FlushCache drops every cached embed.
func (h *EmbedHandler) FlushCache(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "deleted": 0})
		return
	}

	n, err := h.cache.Flush(c.Request.Context())
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("Failed to flush embed cache", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to flush cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"enabled": true, "deleted": n})
}

// resolveErrorStatus maps a Resolve error to an HTTP status and message.
func resolveErrorStatus(err error) (int, string) {
	var se *webembed.StatusError
	switch {
	case errors.Is(err, webembed.ErrInvalidURL):
		return http.StatusBadRequest, "Invalid url"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "Embed API temporarily unavailable"
	case errors.As(err, &se):
		return http.StatusBadGateway, "Embed API returned an error"
	case errors.Is(err, webembed.ErrProviderError):
		return http.StatusBadGateway, "Provider could not embed url"
	case errors.Is(err, webembed.ErrMalformedPayload):
		return http.StatusBadGateway, "Embed API returned a malformed response"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Embed API timed out"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "Request cancelled"
	default:
		return http.StatusBadGateway, "Embed API unreachable"
	}
}
