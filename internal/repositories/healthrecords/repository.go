// Package healthrecords persists sealed health-record rows. The payload
// column is AEAD ciphertext; only id, type tag, timestamps and the optional
// plaintext metadata map are readable without the key.
package healthrecords

import (
	"context"
	"time"

	"github.com/dmitrijs2005/healthvault/internal/models"
)

// Row is one health_records row. Payload is sealed bytes.
type Row struct {
	ID        string
	TypeTag   models.TypeTag
	Payload   []byte
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository describes storage operations for health-record rows.
type Repository interface {
	// Upsert inserts the row or, if the id exists, updates payload, metadata
	// and updated_at while preserving created_at.
	Upsert(ctx context.Context, row *Row) error

	// GetByID returns one row, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*Row, error)

	// GetAllByTag returns every row carrying the given type tag.
	GetAllByTag(ctx context.Context, tag models.TypeTag) ([]Row, error)

	// DeleteByID removes a row. Deleting an absent id is not an error.
	DeleteByID(ctx context.Context, id string) error
}
