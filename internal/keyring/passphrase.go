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

const saltSize = 16

// PassphraseProvider derives the key from a user passphrase with argon2id.
// Only the random salt is persisted; the passphrase itself never touches disk,
// so the key cannot be recovered from the device alone.
type PassphraseProvider struct {
	Passphrase []byte
	SaltPath   string
}

func NewPassphraseProvider(passphrase []byte, saltPath string) *PassphraseProvider {
	return &PassphraseProvider{Passphrase: passphrase, SaltPath: saltPath}
}

func (p *PassphraseProvider) GetOrCreateKey(ctx context.Context) ([]byte, error) {
	salt, err := os.ReadFile(p.SaltPath)
	if errors.Is(err, fs.ErrNotExist) {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("generating salt: %w", err)
		}
		if _, err := filex.EnsureDir(filepath.Dir(p.SaltPath)); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p.SaltPath, salt, 0o600); err != nil {
			return nil, fmt.Errorf("writing salt file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("reading salt file: %w", err)
	}

	return cryptox.DeriveKey(p.Passphrase, salt), nil
}
