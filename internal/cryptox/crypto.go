// Package cryptox provides the authenticated-encryption primitive used by the
// record store and blob store. Every payload written to disk goes through
// Seal; nothing in this package ever logs or persists key material.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KeySize is the only accepted key length (AES-256).
const KeySize = 32

var (
	ErrInvalidKeySize = errors.New("key must be 32 bytes")

	// ErrAuthenticationFailed is returned when a sealed payload fails the
	// AEAD tag check: wrong key, truncated or tampered ciphertext.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// Seal encrypts plaintext with AES-256-GCM under key. A fresh random 12-byte
// nonce is generated per call and prepended to the ciphertext, so the result
// is self-contained: Open needs only the key.
func Seal(plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	// Seal appends to nonce, producing nonce || ciphertext || tag.
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a payload produced by Seal. On any authentication failure it
// returns ErrAuthenticationFailed and no plaintext; the GCM implementation
// compares tags in constant time and never releases partial output.
func Open(sealed, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < aead.NonceSize() {
		return nil, ErrAuthenticationFailed
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// DeriveKey derives a 256-bit key from a passphrase and salt using argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
