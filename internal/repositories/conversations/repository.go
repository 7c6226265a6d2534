// Package conversations persists chat threads and their messages. Message
// content is sealed bytes; a conversation owns its messages, so deleting the
// thread removes them in the same transaction (ON DELETE CASCADE).
package conversations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/healthvault/internal/models"
)

// MessageRow is one messages row. Content is sealed bytes.
type MessageRow struct {
	ID             string
	ConversationID string
	Content        []byte
	Role           models.MessageRole
	Timestamp      time.Time
	Delivery       models.DeliveryStatus
	RetryCount     int
	LastError      string
}

// Repository describes storage operations for conversations and messages.
type Repository interface {
	// UpsertConversation inserts or updates a thread, preserving created_at.
	// Messages on the model are ignored; they are managed individually.
	UpsertConversation(ctx context.Context, c *models.Conversation) error

	// GetConversation returns the thread row without messages, or
	// common.ErrNotFound.
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)

	// ListConversations returns all threads, most recently updated first.
	ListConversations(ctx context.Context) ([]models.Conversation, error)

	// DeleteConversation removes the thread and, via cascade, its messages.
	// Deleting an absent id is not an error.
	DeleteConversation(ctx context.Context, id string) error

	// InsertMessage appends a message. A missing conversation surfaces as
	// common.ErrConstraintViolation.
	InsertMessage(ctx context.Context, m *MessageRow) error

	// GetMessages returns the thread's messages ordered by timestamp.
	GetMessages(ctx context.Context, conversationID string) ([]MessageRow, error)

	// UpdateDelivery sets delivery status, retry count and last error for
	// one message, or common.ErrNotFound.
	UpdateDelivery(ctx context.Context, id string, status models.DeliveryStatus, retryCount int, lastError string) error
}
