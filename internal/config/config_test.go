package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	cfg := Default(dir, "ana")
	cfg.Workspace = "household"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default("/data", "ana")
	assert.Equal(t, "ana", cfg.User)
	assert.Equal(t, filepath.Join("/data", "server.db"), cfg.Server.Database)
	assert.Equal(t, filepath.Join("/data", "client.db"), cfg.Client.Database)
	assert.Equal(t, "production", cfg.Log.Mode)
}
