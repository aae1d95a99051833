package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client, "test"), mr
}

type answer struct {
	Response string `json:"response"`
}

func TestCacheSetAndGet(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", answer{Response: "irrigate"}, time.Minute))
	assert.True(t, mr.Exists("test:k1"))

	var got answer
	require.NoError(t, c.Get(ctx, "k1", &got))
	assert.Equal(t, "irrigate", got.Response)
}

func TestCacheMiss(t *testing.T) {
	c, _ := setupCache(t)

	var got answer
	assert.ErrorIs(t, c.Get(context.Background(), "absent", &got), ErrMiss)
}

func TestCacheExpiry(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", answer{}, time.Second))
	mr.FastForward(2 * time.Second)

	var got answer
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)
}

func TestCacheDelete(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))
	require.NoError(t, c.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("test:a"))
	assert.False(t, mr.Exists("test:b"))
}

func TestCacheUnavailable(t *testing.T) {
	c, mr := setupCache(t)
	mr.Close()

	var got answer
	err := c.Get(context.Background(), "k", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
	assert.Error(t, c.Ping(context.Background()))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("a", "b"), Fingerprint("a", "b"))
	assert.NotEqual(t, Fingerprint("ab", ""), Fingerprint("a", "b"))
	assert.Len(t, Fingerprint("x"), 64)
}
