package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Address)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "holdem.db", cfg.Server.DatabasePath)
	assert.Equal(t, 10, cfg.Game.SmallBlind)
	assert.Equal(t, 20, cfg.Game.BigBlind)
	assert.Equal(t, 1000, cfg.Game.InitialStack)
	assert.Equal(t, 3, cfg.Game.NumBots)
	assert.Equal(t, "medium", cfg.Game.Difficulty)
}

func TestLoadConfigParsesHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.hcl")
	content := `
server {
  address       = "0.0.0.0"
  port          = 9000
  jwt_secret    = "file-secret"
  database_path = "/var/lib/holdem/holdem.db"
  allowed_origins = ["https://example.com"]
}

game {
  small_blind = 25
  big_blind   = 50
  num_bots    = 5
}

llm {
  provider = "deepseek"
  api_key  = "file-key"
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.Server.JWTSecret)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 25, cfg.Game.SmallBlind)
	assert.Equal(t, 50, cfg.Game.BigBlind)
	assert.Equal(t, 5, cfg.Game.NumBots)
	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, "file-key", cfg.LLM.APIKey)

	// Unset values still fall back
	assert.Equal(t, 1000, cfg.Game.InitialStack)
	assert.Equal(t, 100, cfg.Game.MaxRounds)
}

func TestLoadConfigMalformedHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`server { port = `), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.hcl")
	content := `
server {
  jwt_secret = "file-secret"
}

llm {
  provider = "deepseek"
  api_key  = "file-key"
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("HOLDEM_JWT_SECRET", "env-secret")
	t.Setenv("HOLDEM_LLM_API_KEY", "env-key")
	t.Setenv("HOLDEM_LLM_PROVIDER", "openai")
	t.Setenv("HOLDEM_DATABASE_PATH", "/tmp/override.db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Server.JWTSecret)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "/tmp/override.db", cfg.Server.DatabasePath)
}
