// Package store provides persistent storage for charla using SQLite.
//
// # Architecture
//
// The package has two layers:
//
//   - Store: the raw persistence interface (users, sessions, message log),
//     implemented by SQLiteStore and MockStore
//   - Memory: the availability-aware capability handed to the rest of the
//     system; it degrades every operation to an ephemeral no-op when the
//     backing store is unreachable
//
// Degradation is a mode change, not an error: reads become "not found",
// writes become successful no-ops, and the conversational path never fails
// because persistence is down.
//
// # Data Models
//
//   - User: WhatsApp user, created lazily on first contact; a non-empty
//     profile name is never overwritten with an empty one
//   - Session: durable projection of a conversation, at most one live
//     session per user, with an optional expiry swept periodically
//   - StoredMessage: append-only log entry per turn; the provider message
//     id is UNIQUE when present, which makes at-least-once webhook delivery
//     idempotent (a duplicate insert surfaces as ErrDuplicateMessage)
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Testing
//
// Use NewMockStore() for unit tests; set FailAll to simulate an outage and
// exercise degraded mode. Use NewSQLiteStore with a t.TempDir() path for
// integration tests with real SQLite.
package store
