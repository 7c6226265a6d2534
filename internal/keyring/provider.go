// Package keyring supplies the device-held symmetric key. The store itself
// never persists or logs key material; it only ever sees the 32 bytes a
// Provider hands back. On mobile targets the Provider is backed by the
// platform key vault; the implementations here cover desktop and test use.
package keyring

import "context"

// Provider yields the single 256-bit key used for the lifetime of the app.
// Implementations generate a key on first run and persist it outside the
// database.
type Provider interface {
	GetOrCreateKey(ctx context.Context) ([]byte, error)
}

// Static wraps a fixed key. Test use only.
type Static []byte

func (s Static) GetOrCreateKey(ctx context.Context) ([]byte, error) {
	return []byte(s), nil
}
