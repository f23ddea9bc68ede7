package config_test

import (
	"testing"
	"time"

	"github.com/robertarktes/ticket-inventory/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HOLD_TTL", "LOCK_TIMEOUT", "REQUEST_TIMEOUT", "SWEEP_INTERVAL", "JANITOR_INTERVAL", "OUTBOX_BATCH", "HTTP_ADDR"} {
		t.Setenv(k, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.JanitorInterval)
	assert.Equal(t, 50, cfg.OutboxBatch)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("OUTBOX_BATCH", "7")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, 7, cfg.OutboxBatch)
}

func TestLoad_Malformed(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "soon")
	_, err := config.Load()
	assert.ErrorContains(t, err, "SWEEP_INTERVAL")

	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("RATE_LIMIT_IP", "-3")
	_, err = config.Load()
	assert.ErrorContains(t, err, "RATE_LIMIT_IP")
}
