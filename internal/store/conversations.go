package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/healthvault/internal/cryptox"
	"github.com/dmitrijs2005/healthvault/internal/models"
	"github.com/dmitrijs2005/healthvault/internal/repositories/conversations"
)

// SaveConversation upserts a chat thread (without its messages; those are
// appended individually). An empty id gets a generated one.
func (s *Store) SaveConversation(ctx context.Context, c *models.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return s.convs.UpsertConversation(ctx, c)
}

// AppendMessage seals the message content and inserts it. The conversation
// must exist (common.ErrConstraintViolation otherwise). Replay order is by
// timestamp; the caller supplies non-decreasing timestamps within a thread.
func (s *Store) AppendMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.Delivery == "" {
		m.Delivery = models.DeliveryPending
	}

	sealed, err := cryptox.Seal([]byte(m.Content), s.key)
	if err != nil {
		return err
	}

	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	return s.convs.InsertMessage(ctx, &conversations.MessageRow{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Content:        sealed,
		Role:           m.Role,
		Timestamp:      m.Timestamp,
		Delivery:       m.Delivery,
		RetryCount:     m.RetryCount,
		LastError:      m.LastError,
	})
}

// UpdateMessageDelivery records a delivery-state change reported by the chat
// layer's retry machinery. Retry policy itself is a caller concern.
func (s *Store) UpdateMessageDelivery(ctx context.Context, id string, status models.DeliveryStatus, retryCount int, lastError string) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.convs.UpdateDelivery(ctx, id, status, retryCount, lastError)
}

// FetchConversation returns the thread with its messages ordered by
// timestamp, content opened. A message whose content fails to open is
// skipped and logged, like any other corrupt row.
func (s *Store) FetchConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	c, err := s.convs.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.convs.GetMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Messages = make([]models.Message, 0, len(rows))
	for _, row := range rows {
		content, err := cryptox.Open(row.Content, s.key)
		if err != nil {
			s.log.Warn(ctx, "skipping unreadable message", "id", row.ID, "error", err)
			continue
		}
		c.Messages = append(c.Messages, models.Message{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			Content:        string(content),
			Role:           row.Role,
			Timestamp:      row.Timestamp,
			Delivery:       row.Delivery,
			RetryCount:     row.RetryCount,
			LastError:      row.LastError,
		})
	}
	return c, nil
}

// ListConversations returns all threads without messages, most recently
// updated first.
func (s *Store) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.convs.ListConversations(ctx)
}

// DeleteConversation removes the thread and all its messages atomically
// (the child table cascades inside the engine). Idempotent.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.convs.DeleteConversation(ctx, id)
}
