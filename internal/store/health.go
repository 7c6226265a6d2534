package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/healthvault/internal/models"
	"github.com/dmitrijs2005/healthvault/internal/repositories/healthrecords"
)

// SaveHealthRecord seals v and upserts it under id. On an existing id only
// the payload, metadata and updated_at change; created_at is preserved. An
// empty id gets a generated one, returned to the caller.
func (s *Store) SaveHealthRecord(ctx context.Context, id string, v models.Typed, metadata map[string]string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	rec, err := models.Wrap(s.key, id, v)
	if err != nil {
		return "", err
	}

	if err := s.acquire(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	now := time.Now().UTC()
	err = s.records.Upsert(ctx, &healthrecords.Row{
		ID:        id,
		TypeTag:   rec.TypeTag,
		Payload:   rec.Sealed,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// FetchHealthRecords returns the sealed envelopes for one type tag. Most
// callers want the typed FetchTyped instead.
func (s *Store) FetchHealthRecords(ctx context.Context, tag models.TypeTag) ([]models.Record, error) {
	rows, err := s.fetchRows(ctx, tag)
	if err != nil {
		return nil, err
	}

	result := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		result = append(result, models.Record{TypeTag: row.TypeTag, ID: row.ID, Sealed: row.Payload})
	}
	return result, nil
}

// DeleteHealthRecord removes a record by id. Idempotent: deleting an absent
// id is not an error.
func (s *Store) DeleteHealthRecord(ctx context.Context, id string) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.records.DeleteByID(ctx, id)
}

func (s *Store) fetchRows(ctx context.Context, tag models.TypeTag) ([]healthrecords.Row, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.records.GetAllByTag(ctx, tag)
}

// FetchTyped reads every record carrying T's tag and decodes it. A row that
// fails to open or decode (corrupt payload, wrong key) is skipped and logged;
// one bad record never blocks retrieval of the rest.
func FetchTyped[T models.Typed](ctx context.Context, s *Store) ([]TypedRecord[T], error) {
	var zero T
	rows, err := s.fetchRows(ctx, zero.Tag())
	if err != nil {
		return nil, err
	}

	result := make([]TypedRecord[T], 0, len(rows))
	for _, row := range rows {
		v, err := models.Unwrap[T](s.key, models.Record{TypeTag: row.TypeTag, ID: row.ID, Sealed: row.Payload})
		if err != nil {
			s.log.Warn(ctx, "skipping unreadable health record",
				"id", row.ID, "type_tag", row.TypeTag, "error", err)
			continue
		}
		result = append(result, TypedRecord[T]{
			ID:        row.ID,
			Value:     v,
			Metadata:  row.Metadata,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return result, nil
}

// TypedRecord is a decoded health record with its row attributes.
type TypedRecord[T models.Typed] struct {
	ID        string
	Value     T
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WrapRecord seals v into a type-erased record under the store's key, e.g.
// for embedding into a document's extracted data.
func (s *Store) WrapRecord(id string, v models.Typed) (models.Record, error) {
	return models.Wrap(s.key, id, v)
}

// UnwrapRecord decodes a type-erased record sealed under the store's key.
func UnwrapRecord[T models.Typed](s *Store, rec models.Record) (T, error) {
	return models.Unwrap[T](s.key, rec)
}
