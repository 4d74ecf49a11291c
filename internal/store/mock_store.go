// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to simulate outages

package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
// Set FailAll to make every operation (including Ping) return an error,
// simulating a store outage.
type MockStore struct {
	mu       sync.RWMutex
	users    map[string]*User            // keyed by provider id
	sessions map[string]*Session         // keyed by user id
	messages map[string][]*StoredMessage // keyed by session id
	byProvID map[string]bool             // provider message ids already stored

	FailAll bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:    make(map[string]*User),
		sessions: make(map[string]*Session),
		messages: make(map[string][]*StoredMessage),
		byProvID: make(map[string]bool),
	}
}

var errMockDown = errors.New("mock store down")

func (m *MockStore) failing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.FailAll
}

// UpsertUser stores or refreshes a user keyed by provider id.
func (m *MockStore) UpsertUser(ctx context.Context, user *User) (*User, error) {
	if m.failing() {
		return nil, errMockDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := m.users[user.ProviderID]
	if !ok {
		u := *user
		u.CreatedAt = now
		u.LastSeenAt = now
		m.users[user.ProviderID] = &u
		out := u
		return &out, nil
	}
	if user.Name != "" {
		existing.Name = user.Name
	}
	existing.LastSeenAt = now
	out := *existing
	return &out, nil
}

// GetUserByProviderID retrieves a user by provider id.
func (m *MockStore) GetUserByProviderID(ctx context.Context, providerID string) (*User, error) {
	if m.failing() {
		return nil, errMockDown
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[providerID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *user
	return &out, nil
}

// GetSessionByUserID retrieves the live session for a user.
func (m *MockStore) GetSessionByUserID(ctx context.Context, userID string) (*Session, error) {
	if m.failing() {
		return nil, errMockDown
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if session.ExpiresAt != nil && session.ExpiresAt.Before(time.Now()) {
		return nil, ErrNotFound
	}
	out := *session
	return &out, nil
}

// SaveSession stores the session keyed by user id.
func (m *MockStore) SaveSession(ctx context.Context, session *Session) error {
	if m.failing() {
		return errMockDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.sessions[session.UserID]
	s := *session
	if ok {
		// Keep the original session id, mirroring the user_id upsert
		s.ID = existing.ID
	}
	m.sessions[session.UserID] = &s
	return nil
}

// DeleteExpiredSessions purges sessions past their expiry.
func (m *MockStore) DeleteExpiredSessions(ctx context.Context) (int, error) {
	if m.failing() {
		return 0, errMockDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	count := 0
	for userID, session := range m.sessions {
		if session.ExpiresAt != nil && session.ExpiresAt.Before(now) {
			delete(m.sessions, userID)
			delete(m.messages, session.ID)
			count++
		}
	}
	return count, nil
}

// AppendMessage stores one message, enforcing provider message id uniqueness.
func (m *MockStore) AppendMessage(ctx context.Context, msg *StoredMessage) error {
	if m.failing() {
		return errMockDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.ProviderMessageID != "" {
		if m.byProvID[msg.ProviderMessageID] {
			return ErrDuplicateMessage
		}
		m.byProvID[msg.ProviderMessageID] = true
	}

	stored := *msg
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &stored)
	return nil
}

// GetSessionMessages returns messages for a session in insertion order.
func (m *MockStore) GetSessionMessages(ctx context.Context, sessionID string, limit int) ([]*StoredMessage, error) {
	if m.failing() {
		return nil, errMockDown
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*StoredMessage, len(msgs))
	for i, msg := range msgs {
		c := *msg
		out[i] = &c
	}
	return out, nil
}

// MessageCount returns the number of stored messages for a session.
// Test helper, not part of the Store interface.
func (m *MockStore) MessageCount(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[sessionID])
}

// Ping reports the simulated connectivity state.
func (m *MockStore) Ping(ctx context.Context) error {
	if m.failing() {
		return errMockDown
	}
	return nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store interface
var _ Store = (*MockStore)(nil)
