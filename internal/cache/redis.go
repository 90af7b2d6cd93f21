package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
	"github.com/jonesrussell/north-cloud/embedder/internal/webembed"
)

const (
	keyPrefix = "embed:"
	// connectionTimeout bounds the initial Ping.
	connectionTimeout = 5 * time.Second
	scanBatchSize     = 100
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisCache stores embeds as JSON strings with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisCache {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: log}
}

func (c *RedisCache) key(k string) string {
	return keyPrefix + k
}

// Get returns the embed stored under k.
func (c *RedisCache) Get(ctx context.Context, k string) (*webembed.Embed, bool) {
	key := c.key(k)

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		// Treat as a miss; the embed API is still reachable.
		c.logger.Warn("Redis error reading cached embed",
			logger.String("redis_key", key),
			logger.Error(err),
		)
		return nil, false
	}

	var embed webembed.Embed
	if err = json.Unmarshal(raw, &embed); err != nil {
		c.logger.Warn("Discarding undecodable cached embed",
			logger.String("redis_key", key),
			logger.Error(err),
		)
		return nil, false
	}

	return &embed, true
}

// Set stores embed under k for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, k string, embed *webembed.Embed) error {
	raw, err := json.Marshal(embed)
	if err != nil {
		return fmt.Errorf("encode embed: %w", err)
	}

	if err = c.client.Set(ctx, c.key(k), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Flush deletes every embed key. It scans rather than using FLUSHDB so other
// data in the same database is left alone.
func (c *RedisCache) Flush(ctx context.Context) (int, error) {
	pattern := keyPrefix + "*"
	var cursor uint64
	var deleted int

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan keys: %w", err)
		}

		if len(keys) > 0 {
			n, delErr := c.client.Del(ctx, keys...).Result()
			if delErr != nil {
				return deleted, fmt.Errorf("delete keys: %w", delErr)
			}
			deleted += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Info("Flushed cached embeds", logger.Int("deleted", deleted))
	return deleted, nil
}

// Ping checks the Redis connection. Used by the health check.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
