package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/healthvault/internal/common"
	"github.com/dmitrijs2005/healthvault/internal/dbx"
	"github.com/dmitrijs2005/healthvault/internal/models"
)

const columns = `id, file_name, file_type, file_size, storage_path, thumbnail_path,
	processing_status, extracted_data, category, provider, document_date,
	priority, include_in_ai, created_at, updated_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, doc *models.DocumentRecord) error {
	extracted, err := marshalExtracted(doc.ExtractedData)
	if err != nil {
		return err
	}

	query := `INSERT INTO documents (` + columns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				file_name = excluded.file_name,
				file_type = excluded.file_type,
				file_size = excluded.file_size,
				storage_path = excluded.storage_path,
				thumbnail_path = excluded.thumbnail_path,
				processing_status = excluded.processing_status,
				extracted_data = excluded.extracted_data,
				category = excluded.category,
				provider = excluded.provider,
				document_date = excluded.document_date,
				priority = excluded.priority,
				include_in_ai = excluded.include_in_ai,
				updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		doc.ID, doc.FileName, string(doc.FileType), doc.FileSize,
		doc.StoragePath, nullString(doc.ThumbnailPath),
		string(doc.Status), extracted,
		doc.Category, doc.Provider, nullTime(doc.DocumentDate),
		doc.Priority, doc.IncludeInAI,
		doc.CreatedAt.UTC().Format(dbx.TimeFormat),
		doc.UpdatedAt.UTC().Format(dbx.TimeFormat))
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", dbx.MapError(err))
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.DocumentRecord, error) {
	query := `SELECT ` + columns + ` FROM documents WHERE id = ?`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (r *SQLiteRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.FileType != "" {
		where = append(where, "file_type = ?")
		args = append(args, string(filter.FileType))
	}
	if filter.Status != "" {
		where = append(where, "processing_status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, filter.Provider)
	}
	if filter.DateFrom != nil {
		where = append(where, "document_date >= ?")
		args = append(args, filter.DateFrom.UTC().Format(dbx.TimeFormat))
	}
	if filter.DateTo != nil {
		where = append(where, "document_date <= ?")
		args = append(args, filter.DateTo.UTC().Format(dbx.TimeFormat))
	}
	if filter.IncludeInAI != nil {
		where = append(where, "include_in_ai = ?")
		args = append(args, *filter.IncludeInAI)
	}

	query := `SELECT ` + columns + ` FROM documents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY document_date DESC, created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []models.DocumentRecord
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status models.ProcessingStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET processing_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(dbx.TimeFormat), id)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", dbx.MapError(err))
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", dbx.MapError(err))
	}
	return nil
}

func scanDocument(scan func(dest ...any) error) (*models.DocumentRecord, error) {
	var (
		doc       models.DocumentRecord
		fileType  string
		thumbnail sql.NullString
		status    string
		extracted []byte
		docDate   sql.NullString
		createdAt string
		updatedAt string
	)
	if err := scan(&doc.ID, &doc.FileName, &fileType, &doc.FileSize,
		&doc.StoragePath, &thumbnail, &status, &extracted,
		&doc.Category, &doc.Provider, &docDate,
		&doc.Priority, &doc.IncludeInAI, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	doc.FileType = models.FileType(fileType)
	doc.Status = models.ProcessingStatus(status)
	doc.ThumbnailPath = thumbnail.String

	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &doc.ExtractedData); err != nil {
			return nil, fmt.Errorf("failed to parse extracted data: %w", err)
		}
	}

	var err error
	if docDate.Valid {
		ts, err := time.Parse(time.RFC3339Nano, docDate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse document_date: %w", err)
		}
		doc.DocumentDate = &ts
	}
	if doc.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &doc, nil
}

func marshalExtracted(records []models.Record) (any, error) {
	if len(records) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize extracted data: %w", err)
	}
	return b, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dbx.TimeFormat)
}
