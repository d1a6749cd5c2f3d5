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
	require.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/easylesson.sqlite", cfg.Database.Path)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.True(t, cfg.Monitoring.Health.Enabled)

	require.Equal(t, "easylesson", cfg.Auth.JWT.Issuer)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.TTL)
	require.False(t, cfg.Auth.Google.Enabled)
	require.Equal(t, 15*time.Minute, cfg.Auth.Verification.CodeTTL)

	require.False(t, cfg.Email.SendGrid.Enabled)
	require.Equal(t, 10*time.Second, cfg.Email.SendGrid.Timeout)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("EASYLESSON_SERVER_PORT", "9100")
	t.Setenv("EASYLESSON_SERVER_ALLOWED_ORIGINS", "https://a.test,https://b.test")
	t.Setenv("EASYLESSON_DATABASE_DRIVER", "postgres")
	t.Setenv("EASYLESSON_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("EASYLESSON_AUTH_JWT_ACCESS_TOKEN_TTL", "30m")
	t.Setenv("EASYLESSON_AUTH_VERIFICATION_CODE_TTL", "5m")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Server.AllowedOrigins)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 5*time.Minute, cfg.Auth.Verification.CodeTTL)
}

func TestConfigAdapters(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = "adapter-secret"
	cfg.Auth.JWT.Issuer = "easylesson"
	cfg.Auth.JWT.TTL = time.Hour
	cfg.Auth.Verification.CodeTTL = 10 * time.Minute
	cfg.Email.SendGrid.APIKey = "SG.key"
	cfg.Email.SendGrid.From = "noreply@easylesson.test"

	jwtCfg := cfg.Auth.JWTServiceConfig()
	require.Equal(t, "adapter-secret", jwtCfg.Secret)
	require.Equal(t, time.Hour, jwtCfg.AccessTokenTTL)

	require.Equal(t, 10*time.Minute, cfg.Auth.CodeTTL())

	// Unset code TTL falls back to the default.
	cfg.Auth.Verification.CodeTTL = 0
	require.Equal(t, 15*time.Minute, cfg.Auth.CodeTTL())

	sg := cfg.Email.SendGridSettings()
	require.Equal(t, "SG.key", sg.APIKey)
	require.Equal(t, "noreply@easylesson.test", sg.From)
}
