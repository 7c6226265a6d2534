// Package blob stores imported document bytes as encrypted files, separate
// from the relational store. Handles returned by Put are opaque file names
// inside the store's directory; the record store persists only the handle.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/healthvault/internal/common"
	"github.com/dmitrijs2005/healthvault/internal/cryptox"
	"github.com/dmitrijs2005/healthvault/internal/filex"
	"github.com/dmitrijs2005/healthvault/internal/logging"
	"github.com/dmitrijs2005/healthvault/internal/models"
)

// ErrDecryptionFailed is returned when a blob fails authentication and the
// raw bytes do not carry the declared type's file signature either. It
// matches common.ErrCorruptRecord.
var ErrDecryptionFailed = fmt.Errorf("%w: blob decryption failed", common.ErrCorruptRecord)

// Store is an encrypted file store. Put/Get/Delete are independent of the
// record store's lock and safe for concurrent use: every handle is unique,
// and files are written once and never modified.
type Store struct {
	dir string
	key []byte
	log logging.Logger
}

func NewStore(dir string, key []byte, log logging.Logger) (*Store, error) {
	if _, err := filex.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Store{dir: dir, key: key, log: log}, nil
}

// Put seals data and writes it under a generated handle: a random id prefix
// plus the sanitized suggested name, so repeated imports of identically-named
// files never overwrite each other. The declared file type becomes the
// handle's extension when the suggested name does not already carry it.
func (s *Store) Put(ctx context.Context, data []byte, suggestedName string, fileType models.FileType) (string, error) {
	name := filex.SanitizeName(suggestedName)
	if !hasExtensionFor(name, fileType) {
		name += extensionFor(fileType)
	}
	handle := uuid.NewString() + "_" + name

	sealed, err := cryptox.Seal(data, s.key)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.dir, handle), sealed, 0o600); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", mapWriteError(err))
	}
	return handle, nil
}

// Get reads and opens the blob. If authentication fails, the raw bytes are
// checked against the file signature the handle's extension declares: files
// imported before encryption was introduced are returned as-is. The sniff
// only fires on an exact signature match, so new corruption is not masked.
func (s *Store) Get(ctx context.Context, handle string) ([]byte, error) {
	path, err := s.resolve(handle)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	plaintext, err := cryptox.Open(raw, s.key)
	if err == nil {
		return plaintext, nil
	}
	if !errors.Is(err, cryptox.ErrAuthenticationFailed) {
		return nil, err
	}

	if matchesDeclaredSignature(handle, raw) {
		s.log.Warn(ctx, "serving legacy unencrypted blob", "handle", handle)
		return raw, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDecryptionFailed, handle)
}

// Delete removes the blob. Deleting an absent handle is not an error.
func (s *Store) Delete(ctx context.Context, handle string) error {
	path, err := s.resolve(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// resolve rejects handles that would escape the store directory.
func (s *Store) resolve(handle string) (string, error) {
	if handle == "" || handle != filepath.Base(handle) {
		return "", fmt.Errorf("%w: invalid blob handle", common.ErrNotFound)
	}
	return filepath.Join(s.dir, handle), nil
}

func mapWriteError(err error) error {
	if strings.Contains(err.Error(), "no space left on device") {
		return fmt.Errorf("%w: %v", common.ErrStorageExhausted, err)
	}
	return err
}

// typeExtensions lists the extensions accepted for each declared type; the
// first entry is appended when the suggested name carries none of them.
var typeExtensions = map[models.FileType][]string{
	models.FileTypePDF:  {".pdf"},
	models.FileTypePNG:  {".png"},
	models.FileTypeJPEG: {".jpeg", ".jpg"},
	models.FileTypeGIF:  {".gif"},
	models.FileTypeTIFF: {".tiff", ".tif"},
	models.FileTypeHEIC: {".heic", ".heif"},
}

func hasExtensionFor(name string, t models.FileType) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range typeExtensions[t] {
		if ext == allowed {
			return true
		}
	}
	return false
}

func extensionFor(t models.FileType) string {
	if exts := typeExtensions[t]; len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// signatures maps a handle extension to the magic numbers that may begin a
// file of that type.
var signatures = map[string][][]byte{
	".pdf":  {[]byte("%PDF-")},
	".png":  {{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
	".jpg":  {{0xFF, 0xD8, 0xFF}},
	".jpeg": {{0xFF, 0xD8, 0xFF}},
	".gif":  {[]byte("GIF87a"), []byte("GIF89a")},
	".tif":  {[]byte("II*\x00"), []byte("MM\x00*")},
	".tiff": {[]byte("II*\x00"), []byte("MM\x00*")},
}

func matchesDeclaredSignature(handle string, raw []byte) bool {
	ext := strings.ToLower(filepath.Ext(handle))

	// HEIC carries its brand at offset 4
	if ext == ".heic" || ext == ".heif" {
		return len(raw) >= 12 && string(raw[4:8]) == "ftyp"
	}

	for _, sig := range signatures[ext] {
		if len(raw) >= len(sig) && string(raw[:len(sig)]) == string(sig) {
			return true
		}
	}
	return false
}
