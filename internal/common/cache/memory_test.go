package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, capacity int) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(capacity)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 100)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, c.Set(ctx, "k", payload{Name: "x", Count: 3}, time.Minute))

	var got payload
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, payload{Name: "x", Count: 3}, got)

	err := c.Get(ctx, "missing", &got)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 100)

	require.NoError(t, c.Set(ctx, "short", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got string
	assert.ErrorIs(t, c.Get(ctx, "short", &got), ErrMiss)

	_, err := c.TTL(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCache_DelClaim(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 100)

	require.NoError(t, c.Set(ctx, "claim", 1, time.Minute))

	existed, err := c.Del(ctx, "claim")
	require.NoError(t, err)
	assert.True(t, existed)

	// Второй Del того же ключа должен проиграть гонку.
	existed, err = c.Del(ctx, "claim")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestMemoryCache_SetIfNotExists(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 100)

	fresh, err := c.SetIfNotExists(ctx, "marker", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = c.SetIfNotExists(ctx, "marker", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	existed, err := c.Del(ctx, "marker")
	require.NoError(t, err)
	require.True(t, existed)

	fresh, err = c.SetIfNotExists(ctx, "marker", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestMemoryCache_Incr(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 100)

	for want := int64(1); want <= 5; want++ {
		n, err := c.Incr(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
}

func TestMemoryCache_Keys(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 100)

	require.NoError(t, c.Set(ctx, SessionKey("aaa"), "u1", time.Minute))
	require.NoError(t, c.Set(ctx, SessionKey("bbb"), "u2", time.Minute))
	require.NoError(t, c.Set(ctx, InvoiceKey("ccc"), "x", time.Minute))

	keys, err := c.Keys(ctx, "session:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{SessionKey("aaa"), SessionKey("bbb")}, keys)
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 3)

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, c.Set(ctx, "c", 3, time.Minute))

	// Touch "a" so "b" becomes the eviction candidate.
	var n int
	require.NoError(t, c.Get(ctx, "a", &n))

	require.NoError(t, c.Set(ctx, "d", 4, time.Minute))

	assert.NoError(t, c.Get(ctx, "a", &n))
	assert.ErrorIs(t, c.Get(ctx, "b", &n), ErrMiss)
	assert.NoError(t, c.Get(ctx, "c", &n))
	assert.NoError(t, c.Get(ctx, "d", &n))
}
