package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/pulse.sqlite", cfg.Database.Path)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.True(t, cfg.Monitoring.Health.Enabled)
	require.True(t, cfg.Features.Notifications.Enabled)
	require.Zero(t, cfg.Features.Notifications.RetentionDays, "read notifications kept forever by default")
	require.Equal(t, "@daily", cfg.Features.Notifications.RetentionSchedule)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PULSE_SERVER_PORT", "9001")
	t.Setenv("PULSE_DATABASE_DRIVER", "postgres")
	t.Setenv("PULSE_AUTH_JWT_SECRET", "from-env")
	t.Setenv("PULSE_AUTH_JWT_ACCESS_TOKEN_TTL", "1h")
	t.Setenv("PULSE_FEATURES_NOTIFICATIONS_RETENTION_DAYS", "30")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9001, cfg.Server.Port)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "from-env", cfg.Auth.JWT.Secret)
	require.Equal(t, time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, 30, cfg.Features.Notifications.RetentionDays)
}

func TestConfigValidateRequiresJWTSecret(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	cfg.Auth.JWT.Secret = "configured"
	require.NoError(t, cfg.Validate())
}

func TestJWTServiceConfigConversion(t *testing.T) {
	auth := AuthConfig{JWT: JWTSettings{
		Secret: "s",
		Issuer: "pulse",
		TTL:    time.Minute,
	}}

	converted := auth.JWTServiceConfig()
	require.Equal(t, "s", converted.Secret)
	require.Equal(t, "pulse", converted.Issuer)
	require.Equal(t, time.Minute, converted.AccessTokenTTL)
}
