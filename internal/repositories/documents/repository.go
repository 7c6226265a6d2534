// Package documents persists metadata rows for imported files. The bytes
// themselves live in the blob store; rows hold only the storage path.
package documents

import (
	"context"

	"github.com/dmitrijs2005/healthvault/internal/models"
)

// Repository describes storage operations for document rows.
type Repository interface {
	// Upsert inserts the document or updates it by id, preserving created_at.
	Upsert(ctx context.Context, doc *models.DocumentRecord) error

	// GetByID returns one document, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.DocumentRecord, error)

	// List returns documents matching the filter's named predicates,
	// newest first by document date then creation time.
	List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentRecord, error)

	// UpdateStatus sets processing_status for one row. The transition itself
	// is validated by the store, not here.
	UpdateStatus(ctx context.Context, id string, status models.ProcessingStatus) error

	// DeleteByID removes a row. Deleting an absent id is not an error.
	DeleteByID(ctx context.Context, id string) error
}
