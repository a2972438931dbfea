package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRequiresWebhookSecretWithGateway(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dispatch")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("WHATSAPP_URL", "http://gowa:3000")
	t.Setenv("WHATSAPP_WEBHOOK_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WHATSAPP_WEBHOOK_SECRET")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dispatch")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.GetCORSOrigins())
	assert.Equal(t, 10*time.Minute, cfg.GetDedupTTL())
	assert.Equal(t, 24*time.Hour, cfg.GetReminderLeadTime())
	assert.Equal(t, "America/Sao_Paulo", cfg.GetCalendarTimeZone())
	assert.False(t, cfg.IsCalendarEnabled())
	assert.False(t, cfg.IsSMTPEnabled())
}

func TestWildcardOriginForcesAllowAll(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dispatch")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.GetCORSAllowAll())
}
