package cache

import (
	"context"
	"testing"
	"time"

	"planner/backend/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), mr
}

type cachedReply struct {
	Response string `json:"response"`
	Tokens   int    `json:"tokens"`
}

func TestNewRedisClientFromConfig(t *testing.T) {
	client := NewRedisClient(config.RedisConfig{Host: "cache.internal", Port: "6380", DB: 2, PoolSize: 4})
	defer client.Close()

	opts := client.Options()
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
}

func TestRedisCacheSetGet(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "reply:1", cachedReply{Response: "hi", Tokens: 3}, time.Minute))

	var got cachedReply
	require.NoError(t, cache.Get(ctx, "reply:1", &got))
	assert.Equal(t, cachedReply{Response: "hi", Tokens: 3}, got)

	stats := cache.Metrics().GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestRedisCacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	var got cachedReply
	err := cache.Get(context.Background(), "missing", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, int64(1), cache.Metrics().GetStats().Misses)
	assert.Equal(t, 0.0, cache.Metrics().HitRate())
}

func TestRedisCacheExpiry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short", "value", 5*time.Second))
	mr.FastForward(6 * time.Second)

	var got string
	assert.ErrorIs(t, cache.Get(ctx, "short", &got), ErrCacheMiss)
}

func TestRedisCacheDelete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", 1, 0))
	assert.True(t, mr.Exists("a"))

	require.NoError(t, cache.Delete(ctx, "a"))
	assert.False(t, mr.Exists("a"))
	assert.NoError(t, cache.Delete(ctx))
}

func TestRedisCacheDeletePattern(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	for _, key := range []string{"assistant:7:a", "assistant:7:b", "assistant:8:a"} {
		require.NoError(t, cache.Set(ctx, key, "x", time.Minute))
	}

	require.NoError(t, cache.DeletePattern(ctx, "assistant:7:*"))
	assert.False(t, mr.Exists("assistant:7:a"))
	assert.False(t, mr.Exists("assistant:7:b"))
	assert.True(t, mr.Exists("assistant:8:a"))
}

func TestRedisCacheUnavailable(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	mr.Close()

	assert.Error(t, cache.Health(ctx))
	var got string
	err := cache.Get(ctx, "k", &got)
	assert.ErrorIs(t, err, ErrCacheDown)
	assert.Equal(t, int64(1), cache.Metrics().GetStats().Errors)
}

func TestRedisCacheHealthAndStats(t *testing.T) {
	cache, _ := setupTestRedis(t)

	assert.NoError(t, cache.Health(context.Background()))
	stats := cache.Stats()
	assert.Contains(t, stats, "hit_rate")
	assert.Contains(t, stats, "pool_total")
}
