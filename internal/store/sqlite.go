// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/session/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			provider_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			last_seen_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_provider ON users(provider_id);

		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			state BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			expires_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			provider_message_id TEXT UNIQUE,
			created_at TEXT NOT NULL,

			CHECK (direction IN ('incoming', 'outgoing')),
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_provider ON messages(provider_message_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// isDuplicateProviderMessageID matches only the unique index on
// messages.provider_message_id. Other constraint failures on the insert,
// like a foreign key on a swept session, must surface as real errors.
func isDuplicateProviderMessageID(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: messages.provider_message_id")
}

// UpsertUser creates a user on first contact or refreshes an existing one.
// A non-empty stored name is never overwritten with an empty one.
// Returns the stored user row.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *User) (*User, error) {
	existing, err := s.GetUserByProviderID(ctx, user.ProviderID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	now := time.Now().UTC()

	if existing == nil {
		created := &User{
			ID:         user.ID,
			ProviderID: user.ProviderID,
			Name:       user.Name,
			CreatedAt:  now,
			LastSeenAt: now,
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO users (id, provider_id, name, created_at, last_seen_at)
			VALUES (?, ?, ?, ?, ?)
		`, created.ID, created.ProviderID, created.Name,
			created.CreatedAt.Format(time.RFC3339),
			created.LastSeenAt.Format(time.RFC3339))
		if err != nil {
			if isConstraintViolation(err) {
				// Concurrent first contact; the other writer won
				return s.GetUserByProviderID(ctx, user.ProviderID)
			}
			return nil, fmt.Errorf("inserting user: %w", err)
		}
		s.logger.Debug("created user", "provider_id", created.ProviderID)
		return created, nil
	}

	name := existing.Name
	if user.Name != "" {
		name = user.Name
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, last_seen_at = ? WHERE provider_id = ?
	`, name, now.Format(time.RFC3339), user.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	existing.Name = name
	existing.LastSeenAt = now
	return existing, nil
}

// GetUserByProviderID retrieves a user by WhatsApp id.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUserByProviderID(ctx context.Context, providerID string) (*User, error) {
	query := `
		SELECT id, provider_id, name, created_at, last_seen_at
		FROM users
		WHERE provider_id = ?
	`

	var user User
	var createdAtStr, lastSeenStr string

	err := s.db.QueryRowContext(ctx, query, providerID).Scan(
		&user.ID,
		&user.ProviderID,
		&user.Name,
		&createdAtStr,
		&lastSeenStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	user.LastSeenAt, err = time.Parse(time.RFC3339, lastSeenStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_seen_at: %w", err)
	}

	return &user, nil
}

// GetSessionByUserID retrieves the active session for a user.
// Expired sessions are treated as absent.
// Returns ErrNotFound if no live session exists.
func (s *SQLiteStore) GetSessionByUserID(ctx context.Context, userID string) (*Session, error) {
	query := `
		SELECT id, user_id, state, updated_at, expires_at
		FROM sessions
		WHERE user_id = ?
	`

	var session Session
	var updatedAtStr string
	var expiresAtStr sql.NullString

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&session.ID,
		&session.UserID,
		&session.State,
		&updatedAtStr,
		&expiresAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	session.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if expiresAtStr.Valid {
		t, err := time.Parse(time.RFC3339, expiresAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing expires_at: %w", err)
		}
		session.ExpiresAt = &t
	}

	if session.ExpiresAt != nil && session.ExpiresAt.Before(time.Now()) {
		return nil, ErrNotFound
	}

	return &session, nil
}

// SaveSession inserts or replaces the session row for a user.
// The user_id UNIQUE constraint keeps at most one session per user.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *Session) error {
	var expiresAt any
	if session.ExpiresAt != nil {
		expiresAt = session.ExpiresAt.UTC().Format(time.RFC3339)
	}

	query := `
		INSERT INTO sessions (id, user_id, state, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.State,
		session.UpdatedAt.UTC().Format(time.RFC3339),
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	s.logger.Debug("saved session", "id", session.ID, "user_id", session.UserID, "size", len(session.State))
	return nil
}

// DeleteExpiredSessions removes sessions whose expiry has passed and their
// message log entries. Returns the number of sessions deleted.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	// Messages reference sessions, so clear them first
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE session_id IN (
			SELECT id FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?
		)
	`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired session messages: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.logger.Debug("deleted expired sessions", "count", rowsAffected)
	}
	return int(rowsAffected), nil
}

// AppendMessage saves one message log entry. A UNIQUE violation on the
// provider message id is reported as ErrDuplicateMessage so that retried
// webhook deliveries are idempotent.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *StoredMessage) error {
	query := `
		INSERT INTO messages (id, session_id, direction, type, content, provider_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.SessionID,
		msg.Direction,
		msg.Type,
		msg.Content,
		nullString(msg.ProviderMessageID),
		msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isDuplicateProviderMessageID(err) {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("appended message", "id", msg.ID, "session_id", msg.SessionID, "direction", msg.Direction)
	return nil
}

// nullString returns nil for empty strings, otherwise the string pointer
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetSessionMessages retrieves messages for a session, limited to the most
// recent `limit` entries, returned in chronological order (oldest first).
// If limit is 0 or negative, all messages are returned.
func (s *SQLiteStore) GetSessionMessages(ctx context.Context, sessionID string, limit int) ([]*StoredMessage, error) {
	var query string
	var args []any

	if limit > 0 {
		// Get the N most recent messages, but return them in chronological order
		query = `
			SELECT id, session_id, direction, type, content, provider_message_id, created_at
			FROM (
				SELECT id, session_id, direction, type, content, provider_message_id, created_at
				FROM messages
				WHERE session_id = ?
				ORDER BY created_at DESC
				LIMIT ?
			)
			ORDER BY created_at ASC
		`
		args = []any{sessionID, limit}
	} else {
		query = `
			SELECT id, session_id, direction, type, content, provider_message_id, created_at
			FROM messages
			WHERE session_id = ?
			ORDER BY created_at ASC
		`
		args = []any{sessionID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*StoredMessage
	for rows.Next() {
		var msg StoredMessage
		var createdAtStr string
		var providerID sql.NullString

		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Direction, &msg.Type, &msg.Content, &providerID, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}
		if providerID.Valid {
			msg.ProviderMessageID = providerID.String
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
