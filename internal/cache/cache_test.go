package cache_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/embedder/internal/cache"
	"github.com/jonesrussell/north-cloud/embedder/internal/telemetry"
	"github.com/jonesrussell/north-cloud/embedder/internal/webembed"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := cache.NewRedisClient(context.Background(), cache.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return cache.NewRedisCache(client, ttl, nil), mr
}

func TestNewRedisClient_EmptyAddress(t *testing.T) {
	t.Parallel()

	_, err := cache.NewRedisClient(context.Background(), cache.RedisConfig{})
	require.ErrorIs(t, err, cache.ErrEmptyAddress)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	t.Parallel()

	c, mr := newRedisCache(t, time.Hour)
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", &webembed.Embed{HTML: "<p>x</p>", ProviderName: "CodePen", Width: "800"}))

	assert.True(t, mr.Exists("embed:k"))
	assert.Equal(t, time.Hour, mr.TTL("embed:k"))

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "<p>x</p>", got.HTML)
	assert.Equal(t, "CodePen", got.ProviderName)
	assert.Equal(t, webembed.Dimension("800"), got.Width)

	mr.FastForward(2 * time.Hour)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache_CorruptValueIsAMiss(t *testing.T) {
	t.Parallel()

	c, mr := newRedisCache(t, time.Hour)
	require.NoError(t, mr.Set("embed:bad", "{not json"))

	_, ok := c.Get(context.Background(), "bad")
	assert.False(t, ok)
}

func TestRedisCache_FlushOnlyTouchesEmbedKeys(t *testing.T) {
	t.Parallel()

	c, mr := newRedisCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", &webembed.Embed{HTML: "a"}))
	require.NoError(t, c.Set(ctx, "b", &webembed.Embed{HTML: "b"}))
	require.NoError(t, mr.Set("other:key", "keep"))

	n, err := c.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("other:key"))
	assert.False(t, mr.Exists("embed:a"))
}

func TestRedisCache_UnreachableDegradesToMiss(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.NewRedisCache(client, time.Hour, nil)

	mr.Close()

	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	require.Error(t, c.Ping(context.Background()))
}

func TestMemoryCache_TTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.NewMemoryCache(time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", &webembed.Embed{HTML: "x"}))
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "x", got.HTML)

	// Callers may mutate what they get back without corrupting the cache.
	got.HTML = "changed"
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, "x", again.HTML)

	now = now.Add(time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Flush(t *testing.T) {
	t.Parallel()

	c := cache.NewMemoryCache(0)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", &webembed.Embed{HTML: "a"}))
	require.NoError(t, c.Set(ctx, "b", &webembed.Embed{HTML: "b"}))

	n, err := c.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, c.Len())
}

type stubResolver struct {
	calls atomic.Int32
	embed *webembed.Embed
	err   error
}

func (s *stubResolver) Resolve(context.Context, webembed.Request) (*webembed.Embed, error) {
	s.calls.Add(1)
	return s.embed, s.err
}

func TestCachingResolver_HitsAfterFirstResolve(t *testing.T) {
	t.Parallel()

	next := &stubResolver{embed: &webembed.Embed{HTML: "<p>x</p>"}}
	metrics := telemetry.NewMetrics()
	r := cache.NewCachingResolver(next, webembed.URLBuilder{}, cache.NewMemoryCache(time.Hour), metrics, nil)

	req := webembed.Request{URL: "https://codepen.io/pen/x"}
	for range 3 {
		got, err := r.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "<p>x</p>", got.HTML)
	}

	assert.Equal(t, int32(1), next.calls.Load())
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")), 0)
}

func TestCachingResolver_SiteHostChangesKey(t *testing.T) {
	t.Parallel()

	next := &stubResolver{embed: &webembed.Embed{HTML: "<iframe></iframe>"}}
	r := cache.NewCachingResolver(next, webembed.URLBuilder{}, cache.NewMemoryCache(time.Hour), nil, nil)

	_, err := r.Resolve(context.Background(), webembed.Request{URL: "https://twitch.tv/x", SiteHost: "a.example"})
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), webembed.Request{URL: "https://twitch.tv/x", SiteHost: "b.example"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachingResolver_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	next := &stubResolver{err: errors.New("boom")}
	store := cache.NewMemoryCache(time.Hour)
	r := cache.NewCachingResolver(next, webembed.URLBuilder{}, store, nil, nil)

	for range 2 {
		_, err := r.Resolve(context.Background(), webembed.Request{URL: "https://codepen.io/pen/x"})
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), next.calls.Load())
	assert.Equal(t, 0, store.Len())
}

func TestCachingResolver_InvalidURL(t *testing.T) {
	t.Parallel()

	next := &stubResolver{}
	r := cache.NewCachingResolver(next, webembed.URLBuilder{}, cache.NewMemoryCache(time.Hour), nil, nil)

	_, err := r.Resolve(context.Background(), webembed.Request{URL: "ftp://x"})
	require.ErrorIs(t, err, webembed.ErrInvalidURL)
	assert.Equal(t, int32(0), next.calls.Load())
}

func TestKey_IsStableHex(t *testing.T) {
	t.Parallel()

	k := cache.Key("https://webembeds.com/api/embed?url=x")
	assert.Len(t, k, 64)
	assert.Equal(t, k, cache.Key("https://webembeds.com/api/embed?url=x"))
	assert.NotEqual(t, k, cache.Key("https://webembeds.com/api/embed?url=y"))
}
