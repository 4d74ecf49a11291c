// ABOUTME: Notes tool that remembers short facts per user
// ABOUTME: In-process map guarded by a mutex; facts live for the process lifetime

package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const maxNotesPerUser = 50

// NotesTool stores short free-text facts keyed by user. It is a
// process-local memory; durable conversation history lives in the store.
type NotesTool struct {
	mu    sync.Mutex
	notes map[string][]string
}

func NewNotesTool() *NotesTool {
	return &NotesTool{notes: make(map[string][]string)}
}

func (t *NotesTool) Name() string { return "notes" }

func (t *NotesTool) Description() string {
	return "Guarda un dato corto para recordarlo más tarde."
}

func (t *NotesTool) Execute(_ context.Context, req Request) (string, error) {
	fact := strings.TrimSpace(req.Input)
	if fact == "" {
		return "¿Qué quieres que recuerde?", nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing := t.notes[req.UserID]
	if len(existing) >= maxNotesPerUser {
		existing = existing[1:]
	}
	t.notes[req.UserID] = append(existing, fact)

	return fmt.Sprintf("Anotado: %s", fact), nil
}

// Recall returns the facts stored for a user, oldest first.
func (t *NotesTool) Recall(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored := t.notes[userID]
	out := make([]string, len(stored))
	copy(out, stored)
	return out
}
