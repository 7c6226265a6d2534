package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/healthvault/internal/common"
	"github.com/dmitrijs2005/healthvault/internal/models"
)

// SaveDocument upserts a document metadata row. An empty id gets a generated
// one; a zero status starts as pending. created_at is preserved on update.
func (s *Store) SaveDocument(ctx context.Context, doc *models.DocumentRecord) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}

	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	return s.docs.Upsert(ctx, doc)
}

// ImportDocument stores the raw bytes in the blob store and persists the
// metadata row referencing them. The returned record starts as pending.
func (s *Store) ImportDocument(ctx context.Context, data []byte, fileName string, fileType models.FileType) (*models.DocumentRecord, error) {
	handle, err := s.blobs.Put(ctx, data, fileName, fileType)
	if err != nil {
		return nil, err
	}

	doc := &models.DocumentRecord{
		ID:          uuid.NewString(),
		FileName:    fileName,
		FileType:    fileType,
		FileSize:    int64(len(data)),
		StoragePath: handle,
		Status:      models.StatusPending,
		IncludeInAI: true,
	}
	if err := s.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FetchDocuments returns document rows matching the filter's named predicates.
func (s *Store) FetchDocuments(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentRecord, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.docs.List(ctx, filter)
}

// GetDocument returns one document row, or common.ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.DocumentRecord, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.docs.GetByID(ctx, id)
}

// UpdateDocumentStatus advances the processing state. Transitions run
// strictly forward (pending → queued → processing → completed/failed), with
// failed → pending as the only retry edge; anything else is a
// common.ErrConstraintViolation.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, next models.ProcessingStatus) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !doc.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: processing status %s -> %s", common.ErrConstraintViolation, doc.Status, next)
	}
	return s.docs.UpdateStatus(ctx, id, next)
}

// DeleteDocument removes the document and its stored bytes. The blob is
// deleted before the row: a crash between the two leaves an orphaned row
// pointing at nothing, which readers treat as "absent", rather than an
// unreferenced blob that would leak forever. The coupling is best-effort,
// not transactional. Deleting an absent id is not an error.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	doc, err := s.docs.GetByID(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if doc.StoragePath != "" {
		if err := s.blobs.Delete(ctx, doc.StoragePath); err != nil {
			// the blob still exists; keep the row so it can be retried
			return fmt.Errorf("deleting document blob: %w", err)
		}
	}
	if doc.ThumbnailPath != "" {
		if err := s.blobs.Delete(ctx, doc.ThumbnailPath); err != nil {
			// thumbnails are regenerable; a leak here is harmless
			s.log.Warn(ctx, "failed to delete thumbnail", "id", id, "error", err)
		}
	}
	return s.docs.DeleteByID(ctx, id)
}

// Thumbnail returns the document's thumbnail bytes, or nil when the document
// has no thumbnail or its file is gone. A dangling thumbnail reference is
// never an error: thumbnails are regenerable.
func (s *Store) Thumbnail(ctx context.Context, id string) ([]byte, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.ThumbnailPath == "" {
		return nil, nil
	}

	data, err := s.blobs.Get(ctx, doc.ThumbnailPath)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
