package healthrecords

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/healthvault/internal/common"
	"github.com/dmitrijs2005/healthvault/internal/dbx"
	"github.com/dmitrijs2005/healthvault/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, row *Row) error {
	metadata, err := marshalMetadata(row.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO health_records (id, type_tag, payload, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				payload = excluded.payload,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		row.ID, string(row.TypeTag), row.Payload, metadata,
		row.CreatedAt.UTC().Format(dbx.TimeFormat),
		row.UpdatedAt.UTC().Format(dbx.TimeFormat))
	if err != nil {
		return fmt.Errorf("failed to upsert health record: %w", dbx.MapError(err))
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Row, error) {
	query := `SELECT id, type_tag, payload, metadata, created_at, updated_at
			FROM health_records WHERE id = ?`
	row, err := scanRow(r.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get health record: %w", err)
	}
	return row, nil
}

func (r *SQLiteRepository) GetAllByTag(ctx context.Context, tag models.TypeTag) ([]Row, error) {
	query := `SELECT id, type_tag, payload, metadata, created_at, updated_at
			FROM health_records WHERE type_tag = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, string(tag))
	if err != nil {
		return nil, fmt.Errorf("failed to select health records: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM health_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete health record: %w", dbx.MapError(err))
	}
	return nil
}

func scanRow(scan func(dest ...any) error) (*Row, error) {
	var (
		row       Row
		tag       string
		metadata  sql.NullString
		createdAt string
		updatedAt string
	)
	if err := scan(&row.ID, &tag, &row.Payload, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	row.TypeTag = models.TypeTag(tag)

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &row.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
	}

	var err error
	if row.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if row.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &row, nil
}

func marshalMetadata(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metadata: %w", err)
	}
	return string(b), nil
}
