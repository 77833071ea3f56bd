package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, path, cfg.GetLoadedFromPath())

	// The template must now exist on disk.
	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.Port, again.Server.Port)
}

func TestLoadAppliesFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"server": {"port": "9999", "apiKey": "file-key"},
		"attackService": {"baseUrl": "https://attacks.internal", "apiKey": "atk-key", "timeoutSeconds": 10},
		"sync": {"intervalSeconds": 30},
		"database": {"dsn": "postgres://u:p@db/phishflow"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "https://attacks.internal", cfg.AttackService.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.AttackService.Timeout())
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval())
	assert.Equal(t, "postgres://u:p@db/phishflow", cfg.Database.DSN)
	// Unset sections keep defaults.
	assert.Equal(t, []string{"1.1.1.1:53", "8.8.8.8:53"}, cfg.DNS.Resolvers)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("PHISHFLOW_API_KEY", "env-key")
	t.Setenv("PHISHFLOW_SYNC_INTERVAL_SECONDS", "15")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Server.APIKey)
	assert.Equal(t, 15*time.Second, cfg.Sync.Interval())
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
