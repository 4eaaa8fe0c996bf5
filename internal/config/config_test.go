package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("NOTIFY_SMTP_HOST", "")
	t.Setenv("TICKETS_LOCK_WAIT_MILLIS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, 587, cfg.Notification.SMTPPort)
	assert.Equal(t, 5*time.Second, cfg.Tickets.LockWait())
	assert.Equal(t, 15*time.Second, cfg.Notification.SendTimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("REDIS_LOCKS_ENABLED", "true")
	t.Setenv("NOTIFY_BASE_URL", "https://helpdesk.example.com/")
	t.Setenv("TICKETS_LOCK_TTL_SECONDS", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.App.Addr())
	assert.True(t, cfg.Redis.LocksEnabled)
	assert.Equal(t, "https://helpdesk.example.com", cfg.Notification.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Tickets.LockTTL())
}

func TestLoadRejectsBadSMTPPort(t *testing.T) {
	t.Setenv("NOTIFY_SMTP_PORT", "smtp")

	_, err := Load()
	assert.Error(t, err)
}
