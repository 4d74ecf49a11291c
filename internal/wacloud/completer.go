// ABOUTME: Free-form reply generation via an OpenAI-compatible chat endpoint
// ABOUTME: Best-effort collaborator; callers fall back to canned text on error

package wacloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultSystemPrompt = "Eres un asistente amable que responde por WhatsApp. " +
	"Responde en el idioma del usuario, en mensajes cortos y claros."

// Completer calls an OpenAI-compatible chat-completions endpoint to produce
// free-form reply text.
type Completer struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	http         *http.Client
	logger       *slog.Logger
}

// NewCompleter creates a completer. baseURL may be empty for the OpenAI
// production endpoint; systemPrompt may be empty for the default persona.
func NewCompleter(baseURL, apiKey, model, systemPrompt string, logger *slog.Logger) *Completer {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Completer{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		http:         &http.Client{Timeout: 60 * time.Second},
		logger:       logger.With("component", "wacloud.completer"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// Generate produces reply text for a rendered conversation transcript.
func (c *Completer) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling chat endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("reading chat response: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decoding chat response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil {
			return "", fmt.Errorf("chat endpoint rejected request: %s", out.Error)
		}
		return "", fmt.Errorf("chat endpoint rejected request: status %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat endpoint returned no choices")
	}

	return out.Choices[0].Message.Content, nil
}
