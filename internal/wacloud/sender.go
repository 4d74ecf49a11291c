// ABOUTME: Outbound text delivery through the WhatsApp Cloud (Graph) API
// ABOUTME: Fire-once sends; retry policy, if any, belongs to the provider side

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

const defaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// Sender delivers outbound text messages to users through the Graph API.
type Sender struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	http          *http.Client
	logger        *slog.Logger
}

// NewSender creates a sender for one business phone number. baseURL may be
// empty for the production Graph endpoint; tests point it at a local server.
func NewSender(baseURL, accessToken, phoneNumberID string, logger *slog.Logger) *Sender {
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		baseURL:       strings.TrimRight(baseURL, "/"),
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		http:          &http.Client{Timeout: 20 * time.Second},
		logger:        logger.With("component", "wacloud.sender"),
	}
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *apiError) String() string {
	return fmt.Sprintf("%s (type=%s, code=%d)", e.Message, e.Type, e.Code)
}

// SendText delivers one text message and returns the provider message id.
func (s *Sender) SendText(ctx context.Context, to, text string) (string, error) {
	payload := sendTextRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading send response: %w", err)
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decoding send response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil {
			return "", fmt.Errorf("graph api rejected send: %s", out.Error)
		}
		return "", fmt.Errorf("graph api rejected send: status %d", resp.StatusCode)
	}
	if len(out.Messages) == 0 {
		return "", fmt.Errorf("graph api returned no message id")
	}

	s.logger.Debug("message sent", "to", to, "provider_message_id", out.Messages[0].ID)
	return out.Messages[0].ID, nil
}
