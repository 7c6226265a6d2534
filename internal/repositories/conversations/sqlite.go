package conversations

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

func (r *SQLiteRepository) UpsertConversation(ctx context.Context, c *models.Conversation) error {
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("failed to serialize tags: %w", err)
	}

	query := `INSERT INTO conversations (id, title, tags, archived, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				tags = excluded.tags,
				archived = excluded.archived,
				updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.Title, string(tags), c.Archived,
		c.CreatedAt.UTC().Format(dbx.TimeFormat),
		c.UpdatedAt.UTC().Format(dbx.TimeFormat))
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", dbx.MapError(err))
	}
	return nil
}

func (r *SQLiteRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query := `SELECT id, title, tags, archived, created_at, updated_at
			FROM conversations WHERE id = ?`
	c, err := scanConversation(r.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	query := `SELECT id, title, tags, archived, created_at, updated_at
			FROM conversations ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select conversations: %w", err)
	}
	defer rows.Close()

	var result []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteConversation(ctx context.Context, id string) error {
	// messages go with the thread via ON DELETE CASCADE, atomically
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", dbx.MapError(err))
	}
	return nil
}

func (r *SQLiteRepository) InsertMessage(ctx context.Context, m *MessageRow) error {
	query := `INSERT INTO messages (id, conversation_id, content, role, timestamp,
			delivery_status, retry_count, last_error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.ConversationID, m.Content, string(m.Role),
		m.Timestamp.UTC().Format(dbx.TimeFormat),
		string(m.Delivery), m.RetryCount, m.LastError)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", dbx.MapError(err))
	}
	return nil
}

func (r *SQLiteRepository) GetMessages(ctx context.Context, conversationID string) ([]MessageRow, error) {
	// replay order is by timestamp, not insertion order
	query := `SELECT id, conversation_id, content, role, timestamp,
			delivery_status, retry_count, last_error
			FROM messages WHERE conversation_id = ? ORDER BY timestamp`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", err)
	}
	defer rows.Close()

	var result []MessageRow
	for rows.Next() {
		var (
			m        MessageRow
			role     string
			ts       string
			delivery string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &role, &ts,
			&delivery, &m.RetryCount, &m.LastError); err != nil {
			return nil, err
		}
		m.Role = models.MessageRole(role)
		m.Delivery = models.DeliveryStatus(delivery)
		if m.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("failed to parse message timestamp: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) UpdateDelivery(ctx context.Context, id string, status models.DeliveryStatus, retryCount int, lastError string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET delivery_status = ?, retry_count = ?, last_error = ? WHERE id = ?`,
		string(status), retryCount, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to update message delivery: %w", dbx.MapError(err))
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

func scanConversation(scan func(dest ...any) error) (*models.Conversation, error) {
	var (
		c         models.Conversation
		tags      string
		createdAt string
		updatedAt string
	)
	if err := scan(&c.ID, &c.Title, &tags, &c.Archived, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if tags != "" && tags != "[]" {
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return nil, fmt.Errorf("failed to parse tags: %w", err)
		}
	}

	var err error
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &c, nil
}
