// Package config holds filesystem locations for the persistence layer.
// No environment variables govern this subsystem; defaults derive from the
// platform's user configuration directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the on-disk layout of the store.
//
// Fields:
//   - DatabasePath: the single SQLite database file.
//   - BlobDir: directory tree of encrypted document blobs.
//   - KeyPath: location for the file-backed key provider. Must live
//     outside the database directory's backups.
type Config struct {
	DatabasePath string `json:"database_path"`
	BlobDir      string `json:"blob_dir"`
	KeyPath      string `json:"key_path"`
}

// LoadDefaults populates c with platform-default locations.
func (c *Config) LoadDefaults() error {
	base, err := os.UserConfigDir()
	if err != nil {
		return fmt.Errorf("resolving user config dir: %w", err)
	}
	root := filepath.Join(base, "healthvault")
	c.DatabasePath = filepath.Join(root, "db", "healthvault.db")
	c.BlobDir = filepath.Join(root, "blobs")
	c.KeyPath = filepath.Join(root, "keys", "device.key")
	return nil
}

// LoadConfig constructs a Config with defaults, then overlays values from
// the JSON file at path if it is non-empty. Later sources take precedence.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := cfg.LoadDefaults(); err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var overlay Config
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if overlay.DatabasePath != "" {
		cfg.DatabasePath = overlay.DatabasePath
	}
	if overlay.BlobDir != "" {
		cfg.BlobDir = overlay.BlobDir
	}
	if overlay.KeyPath != "" {
		cfg.KeyPath = overlay.KeyPath
	}
	return cfg, nil
}
