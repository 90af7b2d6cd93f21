package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
	"github.com/jonesrussell/north-cloud/embedder/internal/telemetry"
	"github.com/jonesrussell/north-cloud/embedder/internal/webembed"
)

// KeyBuilder produces the embed API URL a request maps to.
type KeyBuilder interface {
	BuildURL(req webembed.Request) (string, error)
}

// CachingResolver wraps a Resolver with a Cache.
type CachingResolver struct {
	next    webembed.Resolver
	keys    KeyBuilder
	cache   Cache
	metrics *telemetry.Metrics
	logger  logger.Logger
}

// NewCachingResolver returns a Resolver that consults c before next.
// Cache keys derive from the API URL, so every parameter that changes the
// answer (site host, width) also changes the key.
func NewCachingResolver(next webembed.Resolver, keys KeyBuilder, c Cache, metrics *telemetry.Metrics, log logger.Logger) *CachingResolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &CachingResolver{next: next, keys: keys, cache: c, metrics: metrics, logger: log}
}

// Resolve returns the cached embed or resolves and stores it.
// Failures are never cached.
func (r *CachingResolver) Resolve(ctx context.Context, req webembed.Request) (*webembed.Embed, error) {
	apiURL, err := r.keys.BuildURL(req)
	if err != nil {
		return nil, err
	}
	key := Key(apiURL)

	if embed, ok := r.cache.Get(ctx, key); ok {
		r.metrics.ObserveCache(true)
		return embed, nil
	}
	r.metrics.ObserveCache(false)

	embed, err := r.next.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	if setErr := r.cache.Set(ctx, key, embed); setErr != nil {
		r.logger.Warn("Failed to cache embed",
			logger.String("url", req.URL),
			logger.Error(setErr),
		)
	}

	return embed, nil
}

// Key hashes an API URL into a fixed-length cache key.
func Key(apiURL string) string {
	sum := sha256.Sum256([]byte(apiURL))
	return hex.EncodeToString(sum[:])
}
