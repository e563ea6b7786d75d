package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "reminders.events", cfg.Kafka.Topic)
	assert.Equal(t, 15*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, "reminders:tick", cfg.Scheduler.NudgeChannel)

	assert.Equal(t, 1, cfg.Policy.MaxPrimaryAttempts)
	assert.Equal(t, 1, cfg.Policy.MaxBackupAttempts)
	assert.Equal(t, time.Minute, cfg.Policy.RetryDelay)
	assert.Equal(t, time.Hour, cfg.Policy.SnoozeDelay)

	assert.Equal(t, "fail", cfg.Fallback.Mode)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Twilio.Configured())
}

func TestLoadUserFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  interval: 5s
policy:
  retry_delay: 30s
redis:
  addr: "127.0.0.1:6379"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 30*time.Second, cfg.Policy.RetryDelay)
	assert.True(t, cfg.Redis.Enabled())
	// untouched sections keep their defaults
	assert.Equal(t, time.Hour, cfg.Policy.SnoozeDelay)
	assert.Equal(t, "reminders.events", cfg.Kafka.Topic)
}

func TestTwilioConfigured(t *testing.T) {
	tw := TwilioConfig{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+12345678901"}
	assert.True(t, tw.Configured())

	tw.FromNumber = ""
	assert.False(t, tw.Configured())
}
