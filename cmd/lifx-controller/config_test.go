package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":0", cfg.BindAddress)
	assert.Equal(t, Duration(time.Second), cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, Duration(300*time.Millisecond), cfg.SettleWindow)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
bind_address: ":56701"
timeout: 2s
max_retries: 5
settle_window: 500ms
protocol_log: /tmp/session.lifxlog
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":56701", cfg.BindAddress)
	assert.Equal(t, Duration(2*time.Second), cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.SettleWindow)
	assert.Equal(t, "/tmp/session.lifxlog", cfg.ProtocolLog)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 750ms\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, Duration(750*time.Millisecond), cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, ":0", cfg.BindAddress)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: [broken\n"), 0o644))
	_, err = loadConfig(path)
	require.Error(t, err)
}

func TestSessionConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Timeout = Duration(2 * time.Second)

	sc := cfg.sessionConfig()
	assert.Equal(t, 2*time.Second, sc.Timeout)
	assert.Equal(t, cfg.BindAddress, sc.BindAddress)
	assert.Equal(t, cfg.MaxRetries, sc.MaxRetries)
	assert.Equal(t, time.Duration(cfg.SettleWindow), sc.SettleWindow)
}
