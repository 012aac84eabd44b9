package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, "dealflow", cfg.Redis.Prefix)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  listen: 0.0.0.0:9000
store:
  driver: postgres
  url: postgres://dealflow@localhost/dealflow?sslmode=disable
sweeper:
  enabled: true
  interval: 5m
  workers: 8
log:
  level: debug
  format: json
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, 8, cfg.Sweeper.Workers)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, float64(20), cfg.Server.RateLimit, "unset fields keep defaults")
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: mongo\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("store: [\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DEALFLOW_LISTEN":         ":8080",
		"DEALFLOW_STORE":          "memory",
		"DEALFLOW_REDIS_ADDR":     "redis:6379",
		"DEALFLOW_SWEEP_INTERVAL": "30s",
		"DEALFLOW_RATE_LIMIT":     "0",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Sweeper.Interval)
	assert.Zero(t, cfg.Server.RateLimit)
	require.NoError(t, cfg.Validate())

	env["DEALFLOW_SWEEP_INTERVAL"] = "soon"
	assert.Error(t, DefaultConfig().ApplyEnv(lookup))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Driver = "postgres"
	assert.Error(t, cfg.Validate(), "postgres needs a url")

	cfg = DefaultConfig()
	cfg.Sweeper.Interval = 10 * time.Millisecond
	assert.Error(t, cfg.Validate())
	cfg.Sweeper.Enabled = false
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Log.Level = "chatty"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Server.Listen = "127.0.0.1:9999"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", got.Server.Listen)
	assert.Error(t, Save(path, nil))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	LogConfig{Level: "debug", Format: "json"}.NewLogger(&buf).Debug("shown", "deal_id", "d1")
	assert.Contains(t, buf.String(), `"deal_id":"d1"`)
}
