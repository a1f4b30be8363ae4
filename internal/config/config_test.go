package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configYAML = `
redis_url: redis://localhost:6379/0
list_limit: 5
log:
  level: debug
telegram:
  token: file-token
  allowed_users: [alice]
transmission:
  host: nas.local
  username: admin
  timeout: 5s
reconciler:
  poll_interval: 30s
search:
  cache_ttl: 48h
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, configYAML))
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Telegram.Token)
	assert.Equal(t, []string{"alice"}, cfg.Telegram.AllowedUsers)
	assert.Equal(t, "nas.local", cfg.Transmission.Host)
	assert.Equal(t, 5*time.Second, cfg.Transmission.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Reconciler.PollInterval)
	assert.Equal(t, 48*time.Hour, cfg.Search.CacheTTL)
	assert.Equal(t, 5, cfg.ListLimit)
	assert.Equal(t, LogLevelDebug, cfg.LogConfig.Level)

	assert.Equal(t, defaultTransmissionPort, cfg.Transmission.Port)
	assert.Equal(t, defaultTransmissionPath, cfg.Transmission.Path)
	assert.Equal(t, defaultMoreLimit, cfg.Search.MoreLimit)
	assert.Equal(t, defaultFilesPerMessage, cfg.FilesPerMessage)
	assert.Equal(t, int64(defaultMaxFileSize), cfg.MaxFileSize)
	assert.Equal(t, defaultKeyPrefix, cfg.KeyPrefix)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TG_TOKEN", "env-token")
	t.Setenv("TG_ALLOWED_USERS", "bob, carol,,")
	t.Setenv("TRANSMISSION_PORT", "19091")
	t.Setenv("RUTRACKER_LOGIN", "tracker-user")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, configYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, []string{"bob", "carol"}, cfg.Telegram.AllowedUsers)
	assert.Equal(t, 19091, cfg.Transmission.Port)
	assert.Equal(t, "tracker-user", cfg.Search.Login)
	assert.Equal(t, LogLevelWarn, cfg.LogConfig.Level)
}

func TestLoadEnvOnly(t *testing.T) {
	t.Setenv("TG_TOKEN", "env-token")
	t.Setenv("REDIS", "redis://localhost:6379/1")
	t.Setenv("TRANSMISSION_HOST", "localhost")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, defaultPollInterval, cfg.Reconciler.PollInterval)
	assert.Equal(t, LogLevelInfo, cfg.LogConfig.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "telegram: ["))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "log:\n  level: verbose\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram token is not set")
	assert.Contains(t, err.Error(), "unknown log level: verbose")

	t.Setenv("TRANSMISSION_PORT", "ninety")
	_, err = Load(writeConfig(t, configYAML))
	require.Error(t, err)
}

func TestValidatePollInterval(t *testing.T) {
	cfg := &Config{RedisURL: "redis://x", Telegram: TelegramConfig{Token: "t"}, Transmission: TransmissionConfig{Host: "h"}}
	cfg.Reconciler.PollInterval = -time.Second
	cfg.SetDefaults()

	require.ErrorContains(t, cfg.Validate(), "poll interval must be positive")
}

func TestMustLoadPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(writeConfig(t, "{}"))
	})
}
