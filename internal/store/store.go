// ABOUTME: Store interface and data types for charla persistence
// ABOUTME: Defines User, Session, StoredMessage structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateMessage is returned when a message with the same provider
// message id has already been stored. Callers should treat this as a benign
// duplicate-delivery signal, not a failure.
var ErrDuplicateMessage = errors.New("message already stored")

// User represents a WhatsApp user, created lazily on first contact.
type User struct {
	ID         string
	ProviderID string // WhatsApp phone/wa_id, unique
	Name       string // profile name, optional
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// Session is the durable projection of a conversation. At most one
// non-expired session exists per user.
type Session struct {
	ID        string
	UserID    string // internal id of the owning user, unique
	State     []byte // serialized conversation state
	UpdatedAt time.Time
	ExpiresAt *time.Time
}

// Direction constants for stored messages
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// StoredMessage is one append-only log entry per conversational turn.
type StoredMessage struct {
	ID                string
	SessionID         string
	Direction         string // "incoming" or "outgoing"
	Type              string // text, audio, image, ...
	Content           string
	ProviderMessageID string // unique when present; enforces delivery idempotency
	CreatedAt         time.Time
}

// Store defines the interface for user, session, and message persistence
type Store interface {
	// Users
	UpsertUser(ctx context.Context, user *User) (*User, error)
	GetUserByProviderID(ctx context.Context, providerID string) (*User, error)

	// Sessions (one active per user)
	GetSessionByUserID(ctx context.Context, userID string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	DeleteExpiredSessions(ctx context.Context) (int, error)

	// Message log (append-only)
	AppendMessage(ctx context.Context, msg *StoredMessage) error
	GetSessionMessages(ctx context.Context, sessionID string, limit int) ([]*StoredMessage, error)

	// Ping reports whether the backing store is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
