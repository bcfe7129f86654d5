package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.APIAddr)
	assert.Equal(t, int64(500), cfg.GmailMaxResults)
	assert.Equal(t, int64(100), cfg.GmailPageSize)
	assert.Equal(t, 10, cfg.GmailRatePerSecond)
	assert.Equal(t, 10, cfg.CheckpointInterval)
	assert.Equal(t, 15*time.Minute, cfg.JWTExpiry)
	assert.Equal(t, "mailsort.jobs", cfg.TaskQueue)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GMAIL_MAX_RESULTS", "42")
	t.Setenv("CHECKPOINT_INTERVAL", "5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("JWT_EXPIRY", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.GmailMaxResults)
	assert.Equal(t, 5, cfg.CheckpointInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.JWTExpiry)
}

func TestLoadRejectsInvalidPageSize(t *testing.T) {
	t.Setenv("GMAIL_PAGE_SIZE", "1000")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidCheckpointInterval(t *testing.T) {
	t.Setenv("CHECKPOINT_INTERVAL", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		JWTSecret:          "secret",
		EncryptionKey:      "key",
		GoogleClientID:     "id",
		GoogleClientSecret: "secret",
	}
	assert.NoError(t, cfg.Validate())

	cfg.JWTSecret = ""
	assert.Error(t, cfg.Validate())
}
