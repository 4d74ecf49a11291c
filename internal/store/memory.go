// ABOUTME: Memory is the availability-aware persistence capability for conversations
// ABOUTME: Degrades every operation to an ephemeral no-op when the backing store is down

package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory wraps a Store with an explicit availability state. When the backing
// store is unreachable, reads degrade to "not found" and writes degrade to
// successful no-ops so the conversational path always completes.
//
// Availability is decided at construction and can be flipped by Recheck.
type Memory struct {
	store      Store
	sessionTTL time.Duration
	logger     *slog.Logger

	mu        sync.RWMutex
	available bool
	ephemeral map[string]string // userID -> synthesized session id, process-scoped
}

// NewMemory creates the persistence capability. A nil store, or a store that
// fails the initial ping, starts in degraded mode.
func NewMemory(s Store, sessionTTL time.Duration, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Memory{
		store:      s,
		sessionTTL: sessionTTL,
		logger:     logger.With("component", "memory"),
		ephemeral:  make(map[string]string),
	}

	if s != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err == nil {
			m.available = true
		} else {
			m.logger.Warn("store unreachable, starting in degraded mode", "error", err)
		}
	} else {
		m.logger.Warn("no store configured, running in degraded mode")
	}

	return m
}

// Available reports whether durable persistence is currently usable.
func (m *Memory) Available() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available
}

// Recheck pings the backing store and updates availability accordingly.
// Returns the new availability state.
func (m *Memory) Recheck(ctx context.Context) bool {
	if m.store == nil {
		return false
	}

	err := m.store.Ping(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	wasAvailable := m.available
	m.available = err == nil

	if m.available && !wasAvailable {
		m.logger.Info("store connectivity restored")
	}
	if !m.available && wasAvailable {
		m.logger.Warn("store connectivity lost, degrading to ephemeral mode", "error", err)
	}
	return m.available
}

// setUnavailable flips to degraded mode after an operational failure.
func (m *Memory) setUnavailable(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.available {
		m.available = false
		m.logger.Warn("store operation failed, degrading to ephemeral mode", "error", err)
	}
}

// UpsertUser creates or refreshes a user record. In degraded mode it
// synthesizes a transient user without touching storage. The transient id is
// derived from the provider id so the same sender maps to the same user,
// and therefore the same ephemeral session, on every turn.
func (m *Memory) UpsertUser(ctx context.Context, providerID, name string) (*User, error) {
	if !m.Available() {
		return ephemeralUser(providerID, name), nil
	}

	user, err := m.store.UpsertUser(ctx, &User{
		ID:         uuid.New().String(),
		ProviderID: providerID,
		Name:       name,
	})
	if err != nil {
		m.setUnavailable(err)
		return ephemeralUser(providerID, name), nil
	}
	return user, nil
}

// ephemeralUser builds a transient user whose id is a function of the
// provider id alone.
func ephemeralUser(providerID, name string) *User {
	now := time.Now().UTC()
	return &User{
		ID:         "ephemeral-user-" + providerID,
		ProviderID: providerID,
		Name:       name,
		CreatedAt:  now,
		LastSeenAt: now,
	}
}

// LoadState returns the serialized conversation state for a user.
// Returns ErrNotFound when no live session exists or the store is degraded,
// which forces a fresh in-memory state for the turn.
func (m *Memory) LoadState(ctx context.Context, userID string) ([]byte, error) {
	if !m.Available() {
		return nil, ErrNotFound
	}

	session, err := m.store.GetSessionByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		m.setUnavailable(err)
		return nil, ErrNotFound
	}
	return session.State, nil
}

// SaveState persists the serialized conversation state for a user, refreshing
// the session expiry. In degraded mode it reports success without writing.
func (m *Memory) SaveState(ctx context.Context, userID, sessionID string, state []byte) error {
	if !m.Available() {
		return nil
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if m.sessionTTL > 0 {
		t := now.Add(m.sessionTTL)
		expiresAt = &t
	}

	err := m.store.SaveSession(ctx, &Session{
		ID:        sessionID,
		UserID:    userID,
		State:     state,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		m.setUnavailable(err)
		return nil
	}
	return nil
}

// GetOrCreateConversation resolves the session id for a user, creating the
// session row on first contact. In degraded mode it hands out a
// process-scoped ephemeral id so a user keeps one id across turns.
func (m *Memory) GetOrCreateConversation(ctx context.Context, userID string) (string, error) {
	if !m.Available() {
		return m.ephemeralSession(userID), nil
	}

	session, err := m.store.GetSessionByUserID(ctx, userID)
	if err == nil {
		return session.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		m.setUnavailable(err)
		return m.ephemeralSession(userID), nil
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if m.sessionTTL > 0 {
		t := now.Add(m.sessionTTL)
		expiresAt = &t
	}
	created := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		State:     []byte("{}"),
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := m.store.SaveSession(ctx, created); err != nil {
		m.setUnavailable(err)
		return m.ephemeralSession(userID), nil
	}

	m.logger.Debug("created session", "session_id", created.ID, "user_id", userID)
	return created.ID, nil
}

// ephemeralSession returns a stable in-process session id for a user.
func (m *Memory) ephemeralSession(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.ephemeral[userID]; ok {
		return id
	}
	id := "ephemeral-" + uuid.New().String()
	m.ephemeral[userID] = id
	return id
}

// AppendMessage writes one message log entry and returns its id. A retried
// delivery carrying an already-stored provider message id is suppressed as a
// benign duplicate. Degraded mode returns a generated id without writing.
func (m *Memory) AppendMessage(ctx context.Context, sessionID, direction, msgType, content, providerMessageID string) (string, error) {
	id := uuid.New().String()

	if !m.Available() {
		return id, nil
	}

	err := m.store.AppendMessage(ctx, &StoredMessage{
		ID:                id,
		SessionID:         sessionID,
		Direction:         direction,
		Type:              msgType,
		Content:           content,
		ProviderMessageID: providerMessageID,
		CreatedAt:         time.Now().UTC(),
	})
	if errors.Is(err, ErrDuplicateMessage) {
		m.logger.Debug("duplicate delivery suppressed", "provider_message_id", providerMessageID)
		return id, ErrDuplicateMessage
	}
	if err != nil {
		m.setUnavailable(err)
		return id, nil
	}
	return id, nil
}

// History returns the most recent messages for a session in chronological
// order, or nothing in degraded mode.
func (m *Memory) History(ctx context.Context, sessionID string, limit int) ([]*StoredMessage, error) {
	if !m.Available() {
		return nil, nil
	}

	msgs, err := m.store.GetSessionMessages(ctx, sessionID, limit)
	if err != nil {
		m.setUnavailable(err)
		return nil, nil
	}
	return msgs, nil
}

// CleanupExpiredSessions purges sessions past their expiry.
// A no-op when the store is degraded.
func (m *Memory) CleanupExpiredSessions(ctx context.Context) (int, error) {
	if !m.Available() {
		return 0, nil
	}

	count, err := m.store.DeleteExpiredSessions(ctx)
	if err != nil {
		m.setUnavailable(err)
		return 0, nil
	}
	return count, nil
}
