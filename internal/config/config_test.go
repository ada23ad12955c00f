package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 3*time.Second, cfg.Poll.Interval)
	assert.False(t, cfg.Poll.BackoffEnabled)
	assert.Equal(t, time.Minute, cfg.Watcher.RetryInterval)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
backend:
  api_url: http://nas.local:8000/api/v1
  static_url: http://nas.local:8000
poll:
  interval: 5s
  backoff_enabled: true
watcher:
  enabled: true
  inbox: /tmp/links
  supported_domains: [bilibili.com]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://nas.local:8000/api/v1", cfg.Backend.APIURL)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.True(t, cfg.Poll.BackoffEnabled)
	assert.Equal(t, 60*time.Second, cfg.Poll.MaxBackoff)
	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, []string{"bilibili.com"}, cfg.Watcher.SupportedDomains)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("ACCIO_SERVER_PORT", "9100")
	t.Setenv("ACCIO_POLL_INTERVAL", "10s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "127.0.0.1:9100", cfg.Server.Address())
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "poll:\n  interval: 0s\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "watcher:\n  enabled: true\n  inbox: \"\"\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestYAMLRoundTrip(t *testing.T) {
	out, err := Default().YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "interval: 3s")

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Contains(t, decoded, "watcher")
}
