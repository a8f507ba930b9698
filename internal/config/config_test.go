package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Session.Storage)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 3, cfg.Session.Parallelism)
	assert.Equal(t, "tavily", cfg.Search.Provider)
	assert.Equal(t, 30, cfg.Limits.WorkflowPerMinute)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deepresearch-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
session:
  storage: file
  dir: /tmp/research-sessions
  parallelism: 5
limits:
  workflow_per_minute: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Session.Storage)
	assert.Equal(t, "/tmp/research-sessions", cfg.Session.Dir)
	assert.Equal(t, 5, cfg.Session.Parallelism)
	assert.Equal(t, 10, cfg.Limits.WorkflowPerMinute)
	// Unset keys keep their defaults.
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DEEPRESEARCH_SERVER_PORT", "9100")
	t.Setenv("DEEPRESEARCH_LLM_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 8080
	cfg.Session.Storage = "redis"
	assert.Error(t, cfg.Validate())

	cfg.Session.Storage = "file"
	cfg.Session.Parallelism = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
