package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	require.NoError(t, c.LoadDefaults())

	assert.NotEmpty(t, c.DatabasePath)
	assert.NotEmpty(t, c.BlobDir)
	assert.NotEmpty(t, c.KeyPath)
	assert.NotEqual(t, filepath.Dir(c.DatabasePath), filepath.Dir(c.KeyPath),
		"key must live outside the database directory")
}

func TestLoadConfig_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"database_path": "/tmp/custom.db"}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.DatabasePath)
	assert.NotEmpty(t, cfg.BlobDir, "unset fields keep their defaults")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DatabasePath)
}
