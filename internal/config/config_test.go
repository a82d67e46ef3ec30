package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "file", cfg.StoreBackend)
	assert.Equal(t, "helper", cfg.DefaultPersona)
	assert.Equal(t, int64(2*1024*1024), cfg.MaxImageSize)
	assert.Equal(t, 700*time.Millisecond, cfg.ReplyDelayMin)
	assert.Equal(t, 2200*time.Millisecond, cfg.ReplyDelayMax)
	assert.False(t, cfg.CancelReplyOnClear)
	assert.Equal(t, "15:04", cfg.TimeFormat)
	assert.Empty(t, cfg.RateLimitWhitelist)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("MAX_IMAGE_SIZE", "500 kB")
	t.Setenv("REPLY_DELAY_MIN", "1s")
	t.Setenv("REPLY_DELAY_MAX", "3s")
	t.Setenv("CANCEL_REPLY_ON_CLEAR", "true")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.0/8, ,127.0.0.1 ")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.StoreOptions().Backend)
	assert.Equal(t, int64(500_000), cfg.MaxImageSize)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.RateLimitWhitelist)

	sc := cfg.SessionConfig()
	assert.Equal(t, time.Second, sc.ReplyMinDelay)
	assert.Equal(t, 3*time.Second, sc.ReplyMaxDelay)
	assert.True(t, sc.CancelReplyOnClear)
	assert.Equal(t, int64(500_000), sc.MaxImageBytes)
	assert.Equal(t, 250*time.Millisecond, sc.TextJitter.Min, "jitter keeps its defaults")
}

func TestLoadRejectsMalformed(t *testing.T) {
	t.Setenv("MAX_IMAGE_SIZE", "lots")
	require.Panics(t, func() { Load() })
}

func TestLoadRejectsInvertedDelays(t *testing.T) {
	t.Setenv("REPLY_DELAY_MIN", "3s")
	t.Setenv("REPLY_DELAY_MAX", "1s")
	require.Panics(t, func() { Load() })
}

func TestLoadProductionRequiresBackendURL(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	require.Panics(t, func() { Load() })

	t.Setenv("STORE_BACKEND", "file")
	assert.NotPanics(t, func() { Load() })
}
