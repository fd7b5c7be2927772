package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Values []float64 `json:"values"`
	Shop   string    `json:"shop"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "forecast:a", payload{Values: []float64{1.5, 2}, Shop: "north"}, time.Minute))

	var got payload
	require.NoError(t, mc.Get(ctx, "forecast:a", &got))
	assert.Equal(t, payload{Values: []float64{1.5, 2}, Shop: "north"}, got)

	var missing payload
	assert.ErrorIs(t, mc.Get(ctx, "forecast:b", &missing), ErrCacheMiss)
}

func TestMemoryCacheExpires(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	time.Sleep(time.Millisecond)

	var n int
	require.NoError(t, mc.Get(ctx, "a", &n))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	ok, _ := mc.Exists(ctx, "b")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "a")
	assert.True(t, ok)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, GenerateKey("forecast", "b1", "north/east", 7), 1, time.Minute))
	require.NoError(t, mc.Set(ctx, GenerateKey("forecast", "b1", "total", 7), 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "status", 1, time.Minute))

	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("forecast")))

	ok, _ := mc.Exists(ctx, "forecast:b1:north/east:7")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "status")
	assert.True(t, ok)
}

func TestMemoryCacheTryLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "train", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "train", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "train"))
	ok, err = mc.TryLock(ctx, "train", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCacheLockSurvivesEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(3))
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "train:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 5; i++ {
		require.NoError(t, mc.Set(ctx, GenerateKey("forecast", i), i, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, "*"))

	ok, err = mc.TryLock(ctx, "train:lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheLockExpires(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "train:lock", time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	ok, err = mc.TryLock(ctx, "train:lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "forecast:abc:total:2024-01-01:30", GenerateKey("forecast", "abc", "total", "2024-01-01", 30))
	assert.Equal(t, "forecast:*", BuildPattern("forecast"))
}
