// ABOUTME: Web search tool backed by a pluggable Searcher
// ABOUTME: Falls back to a polite notice when no search backend is wired

package tools

import (
	"context"
	"fmt"
	"strings"
)

// Searcher answers free-text queries. Implementations live outside this
// package so the registry stays transport-agnostic.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// SearchTool forwards the user's query to a Searcher. A nil searcher is
// allowed; the tool then reports that search is unavailable instead of
// failing the turn.
type SearchTool struct {
	searcher Searcher
}

func NewSearchTool(searcher Searcher) *SearchTool {
	return &SearchTool{searcher: searcher}
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Description() string {
	return "Busca información en la web sobre un tema."
}

func (t *SearchTool) Execute(ctx context.Context, req Request) (string, error) {
	query := strings.TrimSpace(req.Input)
	if query == "" {
		return "¿Qué quieres que busque?", nil
	}
	if t.searcher == nil {
		return "La búsqueda no está disponible en este momento.", nil
	}

	result, err := t.searcher.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("searching %q: %w", query, err)
	}
	if strings.TrimSpace(result) == "" {
		return fmt.Sprintf("No encontré resultados para %q.", query), nil
	}
	return result, nil
}
