package conversations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/healthvault/internal/common"
	"github.com/dmitrijs2005/healthvault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	// the pragma rides in the DSN so every pooled connection enforces FKs
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE conversations (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  tags TEXT NOT NULL DEFAULT '[]',
  archived INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE TABLE messages (
  id TEXT PRIMARY KEY,
  conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
  content BLOB NOT NULL,
  role TEXT NOT NULL,
  timestamp TEXT NOT NULL,
  delivery_status TEXT NOT NULL DEFAULT 'pending',
  retry_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT NOT NULL DEFAULT ''
);
`)
	require.NoError(t, err)
	return db
}

func sampleConversation(id string) *models.Conversation {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return &models.Conversation{
		ID:        id,
		Title:     "Dr. Chen consult",
		Tags:      []string{"cardiology"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleMessage(id, convID string, ts time.Time) *MessageRow {
	return &MessageRow{
		ID:             id,
		ConversationID: convID,
		Content:        []byte("sealed"),
		Role:           models.RoleUser,
		Timestamp:      ts,
		Delivery:       models.DeliveryPending,
	}
}

func TestUpsertConversation_RoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	c := sampleConversation("c1")
	require.NoError(t, r.UpsertConversation(ctx, c))

	got, err := r.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c.Title, got.Title)
	assert.Equal(t, c.Tags, got.Tags)
	assert.False(t, got.Archived)

	// update in place
	c.Title = "Dr. Chen follow-up"
	c.Archived = true
	c.UpdatedAt = c.UpdatedAt.Add(time.Hour)
	require.NoError(t, r.UpsertConversation(ctx, c))

	got, err = r.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Chen follow-up", got.Title)
	assert.True(t, got.Archived)
	assert.Equal(t, c.CreatedAt, got.CreatedAt)
}

func TestGetConversation_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestInsertMessage_MissingConversation(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	err := r.InsertMessage(ctx, sampleMessage("m1", "no-such-thread", time.Now()))
	assert.ErrorIs(t, err, common.ErrConstraintViolation)
}

func TestGetMessages_OrderedByTimestamp(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.UpsertConversation(ctx, sampleConversation("c1")))

	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	// insert out of order; replay must sort by timestamp
	require.NoError(t, r.InsertMessage(ctx, sampleMessage("m3", "c1", base.Add(2*time.Minute))))
	require.NoError(t, r.InsertMessage(ctx, sampleMessage("m1", "c1", base)))
	require.NoError(t, r.InsertMessage(ctx, sampleMessage("m2", "c1", base.Add(time.Minute))))

	got, err := r.GetMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestGetMessages_MixedPrecisionTimestamps(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.UpsertConversation(ctx, sampleConversation("c1")))

	// a whole-second timestamp followed by a sub-second one in the same
	// second; replay order must still follow time, not string quirks
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, r.InsertMessage(ctx, sampleMessage("m1", "c1", base)))
	require.NoError(t, r.InsertMessage(ctx, sampleMessage("m2", "c1", base.Add(500*time.Millisecond))))
	require.NoError(t, r.InsertMessage(ctx, sampleMessage("m3", "c1", base.Add(time.Second))))

	got, err := r.GetMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestDeleteConversation_CascadesToMessages(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.UpsertConversation(ctx, sampleConversation("c1")))
	base := time.Now().UTC()
	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, r.InsertMessage(ctx, sampleMessage(id, "c1", base.Add(time.Duration(i)*time.Second))))
	}

	require.NoError(t, r.DeleteConversation(ctx, "c1"))

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM messages WHERE conversation_id = 'c1'`).Scan(&n))
	assert.Equal(t, 0, n, "no rows may reference the deleted conversation")

	// idempotent
	assert.NoError(t, r.DeleteConversation(ctx, "c1"))
}

func TestUpdateDelivery(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.UpsertConversation(ctx, sampleConversation("c1")))
	require.NoError(t, r.InsertMessage(ctx, sampleMessage("m1", "c1", time.Now())))

	require.NoError(t, r.UpdateDelivery(ctx, "m1", models.DeliveryRetrying, 2, "timeout"))

	got, err := r.GetMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.DeliveryRetrying, got[0].Delivery)
	assert.Equal(t, 2, got[0].RetryCount)
	assert.Equal(t, "timeout", got[0].LastError)

	err = r.UpdateDelivery(ctx, "missing", models.DeliverySent, 0, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListConversations(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	c1 := sampleConversation("c1")
	c2 := sampleConversation("c2")
	c2.UpdatedAt = c2.UpdatedAt.Add(time.Hour)
	require.NoError(t, r.UpsertConversation(ctx, c1))
	require.NoError(t, r.UpsertConversation(ctx, c2))

	got, err := r.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].ID, "most recently updated first")
}
