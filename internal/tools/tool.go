// ABOUTME: Tool interface and execution contract for intent-driven capabilities
// ABOUTME: SafeExecute guarantees no fault escapes a tool's boundary

package tools

import (
	"context"
	"fmt"
	"log/slog"
)

// Request carries the extracted input for one tool invocation.
type Request struct {
	UserID string // provider id of the asking user
	Input  string // extracted tool input
}

// Tool is a named capability invoked by the conversation state machine.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, req Request) (string, error)
}

// apology is what users see when a tool misbehaves. Tool failures never
// abort the conversation.
const apology = "Lo siento, no pude completar esa acción. Intenta de nuevo."

// SafeExecute runs a tool and converts any error or panic into a
// user-facing apology string. Callers never need per-tool error handling.
func SafeExecute(ctx context.Context, tool Tool, req Request, logger *slog.Logger) (out string) {
	if logger == nil {
		logger = slog.Default()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool panicked", "tool", tool.Name(), "panic", fmt.Sprint(r))
			out = apology
		}
	}()

	result, err := tool.Execute(ctx, req)
	if err != nil {
		logger.Warn("tool failed", "tool", tool.Name(), "error", err)
		return apology
	}
	return result
}
