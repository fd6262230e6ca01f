package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "bolt://./taskflow.db", cfg.DatabaseURL)
	assert.Equal(t, "./taskflow.db", cfg.DatabasePath())
	assert.Equal(t, 3, cfg.Store.RetryAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Store.RetryBaseDelay)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: bolt:///var/lib/taskflow/runs.db
log_level: debug
event_bus: kafka
kafka:
  brokers: localhost:9092,localhost:9093
store:
  retry_attempts: 5
  retry_base_delay: 50ms
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/taskflow/runs.db", cfg.DatabasePath())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "kafka", cfg.EventBus)
	assert.Equal(t, 5, cfg.Store.RetryAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Store.RetryBaseDelay)
	assert.Equal(t, time.Second, cfg.Store.OpenTimeout, "unset keys keep their default")
	assert.Equal(t, "taskflow", cfg.ServiceName)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: ["), 0o600))

	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse YAML config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unsupported database", mutate: func(c *Config) { c.DatabaseURL = "postgres://localhost" }},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "trace" }},
		{name: "unknown event bus", mutate: func(c *Config) { c.EventBus = "nats" }},
		{name: "kafka without brokers", mutate: func(c *Config) { c.EventBus = "kafka" }},
		{name: "zero retry attempts", mutate: func(c *Config) { c.Store.RetryAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
