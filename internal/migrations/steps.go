package migrations

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/healthvault/internal/dbx"
)

// TargetVersion is the schema version this build understands.
const TargetVersion = 4

// Migration is one named, forward-only schema alteration. Apply runs inside
// its own transaction; it must not touch the version table.
type Migration struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx dbx.DBTX) error
}

// Chain returns the full historical migration chain, ordered by version.
func Chain() []Migration {
	return []Migration{
		{Version: 1, Name: "base_tables", Apply: applyBaseTables},
		{Version: 2, Name: "document_metadata_columns", Apply: applyDocumentMetadataColumns},
		{Version: 3, Name: "message_delivery_columns", Apply: applyMessageDeliveryColumns},
		{Version: 4, Name: "query_indexes", Apply: applyQueryIndexes},
	}
}

func execAll(ctx context.Context, tx dbx.DBTX, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%q: %w", stmt, err)
		}
	}
	return nil
}

func applyBaseTables(ctx context.Context, tx dbx.DBTX) error {
	return execAll(ctx, tx, []string{
		`CREATE TABLE IF NOT EXISTS health_records (
			id TEXT PRIMARY KEY,
			type_tag TEXT NOT NULL,
			payload BLOB NOT NULL,
			metadata TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			file_type TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			storage_path TEXT NOT NULL,
			thumbnail_path TEXT,
			processing_status TEXT NOT NULL DEFAULT 'pending',
			extracted_data BLOB,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			archived INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			content BLOB NOT NULL,
			role TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`,
	})
}

func applyDocumentMetadataColumns(ctx context.Context, tx dbx.DBTX) error {
	return execAll(ctx, tx, []string{
		`ALTER TABLE documents ADD COLUMN category TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE documents ADD COLUMN provider TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE documents ADD COLUMN document_date TEXT`,
		`ALTER TABLE documents ADD COLUMN priority INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE documents ADD COLUMN include_in_ai INTEGER NOT NULL DEFAULT 1`,
	})
}

func applyMessageDeliveryColumns(ctx context.Context, tx dbx.DBTX) error {
	// existing rows predate delivery tracking; treat them as delivered
	return execAll(ctx, tx, []string{
		`ALTER TABLE messages ADD COLUMN delivery_status TEXT NOT NULL DEFAULT 'sent'`,
		`ALTER TABLE messages ADD COLUMN retry_count INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE messages ADD COLUMN last_error TEXT NOT NULL DEFAULT ''`,
	})
}

func applyQueryIndexes(ctx context.Context, tx dbx.DBTX) error {
	return execAll(ctx, tx, []string{
		`CREATE INDEX IF NOT EXISTS idx_health_records_type ON health_records(type_tag)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_ts ON messages(conversation_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(processing_status)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_date ON documents(document_date)`,
	})
}

// applyCurrentSchema creates the full version-TargetVersion schema in one
// shot. Used for fresh databases, where there is nothing to migrate.
func applyCurrentSchema(ctx context.Context, tx dbx.DBTX) error {
	if err := execAll(ctx, tx, []string{
		`CREATE TABLE IF NOT EXISTS health_records (
			id TEXT PRIMARY KEY,
			type_tag TEXT NOT NULL,
			payload BLOB NOT NULL,
			metadata TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			file_type TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			storage_path TEXT NOT NULL,
			thumbnail_path TEXT,
			processing_status TEXT NOT NULL DEFAULT 'pending',
			extracted_data BLOB,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL DEFAULT '',
			document_date TEXT,
			priority INTEGER NOT NULL DEFAULT 0,
			include_in_ai INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			archived INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			content BLOB NOT NULL,
			role TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			delivery_status TEXT NOT NULL DEFAULT 'pending',
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT ''
		)`,
	}); err != nil {
		return err
	}
	return applyQueryIndexes(ctx, tx)
}
