package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyCutoverMillis(t *testing.T) {
	t.Run("unset means no cutover", func(t *testing.T) {
		ms, err := SubscriptionConfig{}.LegacyCutoverMillis()
		require.NoError(t, err)
		assert.Zero(t, ms)
	})

	t.Run("offset shifts backwards", func(t *testing.T) {
		cfg := SubscriptionConfig{
			LegacyCutover: "2025-06-01 12:00:00",
			CutoverOffset: 3 * time.Hour,
		}
		ms, err := cfg.LegacyCutoverMillis()
		require.NoError(t, err)

		want := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC).UnixMilli()
		assert.Equal(t, want, ms)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := SubscriptionConfig{LegacyCutover: "June 1st"}.LegacyCutoverMillis()
		assert.Error(t, err)
	})
}

func TestQuotaBytes(t *testing.T) {
	assert.Equal(t, int64(0), SubscriptionConfig{}.QuotaBytes())
	assert.Equal(t, int64(20_000_000_000), SubscriptionConfig{QuotaGB: 20}.QuotaBytes())
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LogConfig{Level: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, LogConfig{Level: "warn"}.SlogLevel())
	assert.Equal(t, slog.LevelError, LogConfig{Level: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogConfig{Level: ""}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogConfig{Level: "verbose"}.SlogLevel())
}
