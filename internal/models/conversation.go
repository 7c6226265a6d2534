package models

import "time"

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// DeliveryStatus tracks an outbound message through the chat layer's retry
// state machine. Transitions are a caller concern; the store only persists
// the current value.
type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliverySending  DeliveryStatus = "sending"
	DeliverySent     DeliveryStatus = "sent"
	DeliveryFailed   DeliveryStatus = "failed"
	DeliveryRetrying DeliveryStatus = "retrying"
)

// Conversation is a chat thread. It owns its messages: deleting the
// conversation cascades to them.
type Conversation struct {
	ID        string
	Title     string
	Tags      []string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// Messages is populated on fetch, ordered by timestamp for replay.
	// Callers must supply non-decreasing timestamps within a conversation;
	// the store does not enforce this.
	Messages []Message
}

// Message is a single chat message. Content is sealed at rest.
type Message struct {
	ID             string
	ConversationID string
	Content        string
	Role           MessageRole
	Timestamp      time.Time
	Delivery       DeliveryStatus
	RetryCount     int
	LastError      string
}
