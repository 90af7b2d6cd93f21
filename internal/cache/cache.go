// Package cache stores resolved embeds so repeated links skip the embed API.
package cache

import (
	"context"
	"errors"

	"github.com/jonesrussell/north-cloud/embedder/internal/webembed"
)

// ErrEmptyAddress is returned when Redis is enabled without an address.
var ErrEmptyAddress = errors.New("redis address is required")

// Cache stores embeds by key.
type Cache interface {
	// Get returns the cached embed. ok is false on a miss or any lookup error.
	Get(ctx context.Context, key string) (embed *webembed.Embed, ok bool)
	Set(ctx context.Context, key string, embed *webembed.Embed) error
	// Flush removes every cached embed and reports how many were removed.
	Flush(ctx context.Context) (int, error)
}
