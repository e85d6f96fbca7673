package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwtSecret: secret\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30, cfg.Policy.UpcomingDaysWindow)
	assert.Equal(t, 1000, cfg.Policy.UpcomingKmWindow)
	assert.Equal(t, 25, cfg.Policy.DueWeight)
	assert.Equal(t, 10, cfg.Policy.UpcomingWeight)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
policy:
  upcomingDaysWindow: 14
  upcomingKmWindow: 500
realtime:
  url: "ws://push.internal/ws"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 14, cfg.Policy.UpcomingDaysWindow)
	assert.Equal(t, 500, cfg.Policy.UpcomingKmWindow)
	assert.Equal(t, "ws://push.internal/ws", cfg.Realtime.URL)
}

func TestLoadConfigRejectsBadWindows(t *testing.T) {
	path := writeConfig(t, "policy:\n  upcomingDaysWindow: -1\n")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
