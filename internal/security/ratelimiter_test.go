package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhub-dev/keyhub/internal/cache"
)

func newTestLimiter(t *testing.T) *RateLimiter {
	t.Helper()
	limiter, err := NewRateLimiter(cache.NewStore(cache.Options{DefaultTTL: time.Minute}))
	require.NoError(t, err)
	return limiter
}

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	limiter := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "client", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d", i+1)
	}

	result, err := limiter.Allow(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := newTestLimiter(t)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "one", 1, time.Minute)
	require.NoError(t, err)

	result, err := limiter.Allow(ctx, "two", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimiterReset(t *testing.T) {
	limiter := newTestLimiter(t)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "client", 1, time.Minute)
	require.NoError(t, err)

	blocked, err := limiter.Allow(ctx, "client", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, blocked.Allowed)

	limiter.Reset(ctx, "client")

	result, err := limiter.Allow(ctx, "client", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimiterRejectsBadLimit(t *testing.T) {
	limiter := newTestLimiter(t)
	_, err := limiter.Allow(context.Background(), "client", 0, time.Minute)
	assert.Error(t, err)
}
