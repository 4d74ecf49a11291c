// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Covers users, sessions, the append-only message log, and expiry sweeps

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestSQLiteStore_UpsertUser_CreatesOnFirstContact(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user, err := store.UpsertUser(ctx, &User{
		ID:         "user-1",
		ProviderID: "5215550001",
		Name:       "Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, "5215550001", user.ProviderID)
	assert.Equal(t, "Ana", user.Name)
	assert.False(t, user.CreatedAt.IsZero())

	retrieved, err := store.GetUserByProviderID(ctx, "5215550001")
	require.NoError(t, err)
	assert.Equal(t, "Ana", retrieved.Name)
}

func TestSQLiteStore_UpsertUser_NeverClearsName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertUser(ctx, &User{ID: "user-1", ProviderID: "5215550001", Name: "Ana"})
	require.NoError(t, err)

	// A later contact without a profile name must not clobber the stored one
	updated, err := store.UpsertUser(ctx, &User{ID: "user-2", ProviderID: "5215550001", Name: ""})
	require.NoError(t, err)
	assert.Equal(t, "Ana", updated.Name)

	// A new non-empty name is taken
	updated, err = store.UpsertUser(ctx, &User{ID: "user-3", ProviderID: "5215550001", Name: "Ana María"})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", updated.Name)
}

func TestSQLiteStore_GetUserByProviderID_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetUserByProviderID(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SaveSession_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	session := &Session{
		ID:        "session-1",
		UserID:    "5215550001",
		State:     []byte(`{"turns":[]}`),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
		ExpiresAt: timePtr(time.Now().Add(time.Hour).UTC().Truncate(time.Second)),
	}
	require.NoError(t, store.SaveSession(ctx, session))

	retrieved, err := store.GetSessionByUserID(ctx, "5215550001")
	require.NoError(t, err)
	assert.Equal(t, "session-1", retrieved.ID)
	assert.Equal(t, []byte(`{"turns":[]}`), retrieved.State)
	require.NotNil(t, retrieved.ExpiresAt)
}

func TestSQLiteStore_SaveSession_OnePerUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, &Session{
		ID: "session-1", UserID: "5215550001", State: []byte("{}"), UpdatedAt: time.Now(),
	}))

	// Saving again for the same user replaces the state rather than
	// creating a second session
	require.NoError(t, store.SaveSession(ctx, &Session{
		ID: "session-1", UserID: "5215550001", State: []byte(`{"n":1}`), UpdatedAt: time.Now(),
	}))

	retrieved, err := store.GetSessionByUserID(ctx, "5215550001")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"n":1}`), retrieved.State)
}

func TestSQLiteStore_GetSessionByUserID_ExpiredIsAbsent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, &Session{
		ID:        "session-old",
		UserID:    "5215550001",
		State:     []byte("{}"),
		UpdatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: timePtr(time.Now().Add(-time.Hour)),
	}))

	_, err := store.GetSessionByUserID(ctx, "5215550001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_DeleteExpiredSessions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, &Session{
		ID: "session-live", UserID: "live-user", State: []byte("{}"),
		UpdatedAt: time.Now(),
		ExpiresAt: timePtr(time.Now().Add(time.Hour)),
	}))
	require.NoError(t, store.SaveSession(ctx, &Session{
		ID: "session-dead", UserID: "dead-user", State: []byte("{}"),
		UpdatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: timePtr(time.Now().Add(-time.Hour)),
	}))
	require.NoError(t, store.AppendMessage(ctx, &StoredMessage{
		ID: "msg-dead", SessionID: "session-dead", Direction: DirectionIncoming,
		Type: "text", Content: "hola", CreatedAt: time.Now().Add(-2 * time.Hour),
	}))

	count, err := store.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Live session survives
	_, err = store.GetSessionByUserID(ctx, "live-user")
	assert.NoError(t, err)

	// Dead session and its log entries are gone
	_, err = store.GetSessionByUserID(ctx, "dead-user")
	assert.ErrorIs(t, err, ErrNotFound)
	msgs, err := store.GetSessionMessages(ctx, "session-dead", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSQLiteStore_AppendMessage_DuplicateProviderID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, &Session{
		ID: "session-1", UserID: "5215550001", State: []byte("{}"), UpdatedAt: time.Now(),
	}))

	msg := &StoredMessage{
		ID:                "msg-1",
		SessionID:         "session-1",
		Direction:         DirectionIncoming,
		Type:              "text",
		Content:           "hola",
		ProviderMessageID: "wamid.abc123",
		CreatedAt:         time.Now(),
	}
	require.NoError(t, store.AppendMessage(ctx, msg))

	// A retried delivery with the same provider message id is rejected as a
	// benign duplicate, leaving exactly one row
	retry := *msg
	retry.ID = "msg-2"
	err := store.AppendMessage(ctx, &retry)
	assert.ErrorIs(t, err, ErrDuplicateMessage)

	msgs, err := store.GetSessionMessages(ctx, "session-1", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, "wamid.abc123", msgs[0].ProviderMessageID)
}

func TestSQLiteStore_AppendMessage_MissingSessionIsNotDuplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// The session can be swept between resolution and append. That foreign
	// key failure is a real error, not a retried delivery.
	err := store.AppendMessage(ctx, &StoredMessage{
		ID:                "msg-1",
		SessionID:         "session-gone",
		Direction:         DirectionIncoming,
		Type:              "text",
		Content:           "hola",
		ProviderMessageID: "wamid.orphan",
		CreatedAt:         time.Now(),
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateMessage)
}

func TestSQLiteStore_AppendMessage_EmptyProviderIDNotUnique(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, &Session{
		ID: "session-1", UserID: "5215550001", State: []byte("{}"), UpdatedAt: time.Now(),
	}))

	// Outgoing messages carry no provider id; several must coexist
	for i, id := range []string{"msg-1", "msg-2"} {
		err := store.AppendMessage(ctx, &StoredMessage{
			ID:        id,
			SessionID: "session-1",
			Direction: DirectionOutgoing,
			Type:      "text",
			Content:   "respuesta",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Millisecond),
		})
		require.NoError(t, err)
	}

	msgs, err := store.GetSessionMessages(ctx, "session-1", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestSQLiteStore_GetSessionMessages_LimitReturnsMostRecent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, &Session{
		ID: "session-1", UserID: "5215550001", State: []byte("{}"), UpdatedAt: time.Now(),
	}))

	base := time.Now().Add(-time.Minute)
	contents := []string{"uno", "dos", "tres", "cuatro"}
	for i, c := range contents {
		require.NoError(t, store.AppendMessage(ctx, &StoredMessage{
			ID:        c,
			SessionID: "session-1",
			Direction: DirectionIncoming,
			Type:      "text",
			Content:   c,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	msgs, err := store.GetSessionMessages(ctx, "session-1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// Most recent two, oldest first
	assert.Equal(t, "tres", msgs[0].Content)
	assert.Equal(t, "cuatro", msgs[1].Content)
}

func TestSQLiteStore_Ping(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
