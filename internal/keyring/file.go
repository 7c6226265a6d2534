package keyring

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/healthvault/internal/cryptox"
	"github.com/dmitrijs2005/healthvault/internal/filex"
)

// FileProvider stores a randomly generated key in a 0600 file. The path must
// live outside the database directory so a database backup never captures it.
type FileProvider struct {
	Path string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

// GetOrCreateKey reads the key file, generating and persisting a fresh random
// key on first run.
func (p *FileProvider) GetOrCreateKey(ctx context.Context) ([]byte, error) {
	key, err := os.ReadFile(p.Path)
	if err == nil {
		if len(key) != cryptox.KeySize {
			return nil, fmt.Errorf("key file %s: %w", p.Path, cryptox.ErrInvalidKeySize)
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	key = make([]byte, cryptox.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	if _, err := filex.EnsureDir(filepath.Dir(p.Path)); err != nil {
		return nil, err
	}
	if err := os.WriteFile(p.Path, key, 0o600); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	return key, nil
}
