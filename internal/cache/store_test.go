package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSetGet(t *testing.T) {
	store := NewStore(Options{DefaultTTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "greeting", "hello", 0))

	got, ok := store.GetString(ctx, "greeting")
	assert.True(t, ok)
	assert.Equal(t, "hello", got)

	_, ok = store.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(Options{DefaultTTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	store.Delete(ctx, "k")

	_, ok := store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStoreNamespaceIsolation(t *testing.T) {
	store := NewStore(Options{DefaultTTL: time.Minute})
	ctx := context.Background()

	a := store.Namespace("a")
	b := store.Namespace("b")

	require.NoError(t, a.Set(ctx, "k", "from-a", 0))

	_, ok := b.Get(ctx, "k")
	assert.False(t, ok, "namespaces must not leak into each other")

	got, ok := a.GetString(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "from-a", got)
}

func TestStoreIncrement(t *testing.T) {
	store := NewStore(Options{DefaultTTL: time.Minute})
	ctx := context.Background()

	first, err := store.Increment(ctx, "counter", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	second, err := store.Increment(ctx, "counter", 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), second)
}

func TestStoreTTL(t *testing.T) {
	store := NewStore(Options{DefaultTTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", 30*time.Second))

	ttl, ok := store.TTL(ctx, "k")
	assert.True(t, ok)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 30*time.Second)
}
