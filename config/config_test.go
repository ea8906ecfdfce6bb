package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  dsn: "file::memory:"
federation:
  server_name: "node-a"
  max_attempts: 3
  peer_keys:
    node-b: "shared-secret"
`), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("APP_FEDERATION_WORKERS", "9")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "node-a", cfg.Federation.ServerName)
	assert.Equal(t, 3, cfg.Federation.MaxAttempts)
	assert.Equal(t, 9, cfg.Federation.Workers)
	assert.Equal(t, 2*time.Second, cfg.Federation.BaseBackoff)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, map[string]string{"node-b": "shared-secret"}, cfg.Federation.PeerKeys)
	assert.False(t, cfg.Federation.RequireSignature)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Database:   DatabaseConfig{Driver: "sqlite"},
			Federation: FederationConfig{ServerName: "srv1", MaxAttempts: 1},
		}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Federation.ServerName = "a/b"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Federation.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Federation.PeerKeys = map[string]string{"srv2": ""}
	assert.Error(t, cfg.Validate())
	cfg.Federation.PeerKeys = map[string]string{"srv2": string(make([]byte, 65))}
	assert.Error(t, cfg.Validate())
	cfg.Federation.PeerKeys = map[string]string{"srv2": "k"}
	assert.NoError(t, cfg.Validate())
}
