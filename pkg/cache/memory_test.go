package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Rows    int       `json:"rows"`
	Columns []string  `json:"columns"`
	Values  []float64 `json:"values"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	in := payload{Rows: 2, Columns: []string{"GDP"}, Values: []float64{1.5, 2}}
	require.NoError(t, mc.Set(ctx, "series:1", in, time.Minute))

	var out payload
	require.NoError(t, mc.Get(ctx, "series:1", &out))
	assert.Equal(t, in, out)

	err := mc.Get(ctx, "series:2", &out)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	time.Sleep(time.Millisecond)
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &v))
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "query:1:a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "query:1:b", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "other", 1, time.Minute))
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("query:")))
	assert.Equal(t, 1, mc.Len())
}

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "rebuild", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "rebuild", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "rebuild"))
	ok, _ = mc.TryLock(ctx, "rebuild", time.Minute)
	assert.True(t, ok)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "query:3:series", GenerateKeyWithParams("query", 3, "series"))
	assert.Len(t, HashKey("x"), 32)
}
