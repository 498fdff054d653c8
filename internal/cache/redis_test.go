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

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, time.Minute), mr
}

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestSetGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "catalog:product:1", item{ID: 1, Name: "Resistor"}))
	assert.True(t, mr.Exists("storefront:catalog:product:1"))

	var got item
	require.NoError(t, c.Get(ctx, "catalog:product:1", &got))
	assert.Equal(t, item{ID: 1, Name: "Resistor"}, got)
}

func TestGet_CacheMiss(t *testing.T) {
	c, _ := setupTestRedis(t)

	var got item
	err := c.Get(context.Background(), "nope", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGet_InvalidJSON(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("storefront:bad", "{not json"))

	var got item
	err := c.Get(context.Background(), "bad", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSet_TTLWithJitter(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, c.Set(context.Background(), "k", item{ID: 1}))

	ttl := mr.TTL("storefront:k")
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.LessOrEqual(t, ttl, time.Minute+20*time.Second)
}

func TestDelete(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", 1))
	require.NoError(t, c.Set(ctx, "b", 2))

	require.NoError(t, c.Delete(ctx, "a", "b", "missing"))
	assert.False(t, mr.Exists("storefront:a"))
	assert.False(t, mr.Exists("storefront:b"))
	require.NoError(t, c.Delete(ctx))
}

func TestDeletePrefix(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "charts:revenue-month:2024", 1))
	require.NoError(t, c.Set(ctx, "charts:revenue-month:2025", 1))
	require.NoError(t, c.Set(ctx, "catalog:products", 1))

	require.NoError(t, c.DeletePrefix(ctx, "charts:"))
	assert.False(t, mr.Exists("storefront:charts:revenue-month:2024"))
	assert.False(t, mr.Exists("storefront:charts:revenue-month:2025"))
	assert.True(t, mr.Exists("storefront:catalog:products"))
}

func TestRedisDown(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Close()

	var got item
	err := c.Get(context.Background(), "k", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
