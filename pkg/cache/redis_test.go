package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping Redis tests")
	}

	opts := DefaultOptions()
	opts.Backend = BackendRedis
	opts.RedisAddr = addr
	opts.RedisPassword = os.Getenv("REDIS_TEST_PASSWORD")
	opts.RedisKeyPrefix = "guestrisk-test:"
	opts.DefaultTTL = time.Minute

	c, err := NewRedisCache(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		_ = c.scan(ctx, "*", func(keys []string) error {
			return c.client.Del(ctx, keys...).Err()
		})
		_ = c.Close()
	})
	return c
}

func TestRedisCache_SetGet(t *testing.T) {
	c := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "simulate:a", []byte("value"), 0))

	got, err := c.Get(ctx, "simulate:a")
	require.NoError(t, err)
	assert.Equal(t, "value", string(got))

	ttl, err := c.client.TTL(ctx, c.key("simulate:a")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisCache_NotFound(t *testing.T) {
	c := newTestRedisCache(t)

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisCache_DeleteAndStats(t *testing.T) {
	c := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "simulate:1", []byte("v"), 0))
	require.NoError(t, c.Set(ctx, "simulate:2", []byte("v"), 0))
	require.NoError(t, c.Set(ctx, "sweep:1", []byte("v"), 0))

	require.NoError(t, c.Delete(ctx, "simulate:1"))
	_, err := c.Get(ctx, "simulate:1")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.KeysByPrefix["simulate"])
	assert.Equal(t, int64(1), stats.KeysByPrefix["sweep"])
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	opts := DefaultOptions()
	opts.RedisAddr = "127.0.0.1:1"

	_, err := NewRedisCache(opts)
	assert.Error(t, err)
}
