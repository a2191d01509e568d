package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.Endpoint)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Retriever.TopK)
	assert.Equal(t, 1, cfg.Batch.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Store.QueryTimeout)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "agent.yaml")
	content := `
llm:
  model: llama3.1:8b
  timeout: 5s
retriever:
  top_k: 5
store:
  path: /tmp/shop.sqlite
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	t.Setenv("AGENT_BATCH_CONCURRENCY", "4")
	t.Setenv("AGENT_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(New(), file)
	require.NoError(t, err)

	assert.Equal(t, "llama3.1:8b", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5, cfg.Retriever.TopK)
	assert.Equal(t, "/tmp/shop.sqlite", cfg.Store.Path)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig(New(), "")
	require.NoError(t, err)

	bad := *cfg
	bad.LLM.Provider = "anthropic"
	assert.ErrorContains(t, bad.Validate(), "Provider")

	bad = *cfg
	bad.Retriever.TopK = 0
	assert.ErrorContains(t, bad.Validate(), "TopK")

	bad = *cfg
	bad.LLM.Provider = "openai"
	bad.LLM.APIKey = ""
	assert.ErrorContains(t, bad.Validate(), "api_key")
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", LogConfig{Level: "debug"}.SlogLevel().String())
	assert.Equal(t, "WARN", LogConfig{Level: "warn"}.SlogLevel().String())
	assert.Equal(t, "INFO", LogConfig{Level: "bogus"}.SlogLevel().String())
}
