// ABOUTME: HTTP handlers for the webhook endpoint (handshake GET, delivery POST)
// ABOUTME: Acknowledges fast and hands processable messages to a dispatcher

package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// maxBodySize caps webhook request bodies. Cloud API deliveries are small;
// anything larger is hostile.
const maxBodySize = 1 << 20

// Dispatcher receives extracted messages for asynchronous processing.
// Dispatch must not block; it returns false when the message was dropped
// (e.g. the work queue is full).
type Dispatcher interface {
	Dispatch(msg *Message, respond bool) bool
}

// Handler serves the provider-facing webhook endpoint.
//
// The provider enforces a short response deadline and retries deliveries it
// does not see acknowledged, so the POST path does structural validation and
// extraction only; all conversation work happens after the ack, on the
// dispatcher's workers.
type Handler struct {
	verifyToken string
	appSecret   string // empty disables signature verification
	dispatcher  Dispatcher
	logger      *slog.Logger
}

// NewHandler creates a webhook handler. appSecret may be empty to skip
// signature verification.
func NewHandler(verifyToken, appSecret string, dispatcher Dispatcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		dispatcher:  dispatcher,
		logger:      logger.With("component", "webhook"),
	}
}

// HandleWebhook routes webhook requests by HTTP method.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleVerify(w, r)
	case http.MethodPost:
		h.handleDelivery(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleVerify answers the one-time subscription handshake.
// 200 with the challenge body on success, 403 otherwise.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	echoed, err := VerifyHandshake(mode, token, challenge, h.verifyToken)
	if err != nil {
		h.logger.Warn("handshake rejected", "mode", mode)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	h.logger.Info("webhook handshake verified")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, echoed)
}

// handleDelivery validates and acknowledges one webhook delivery.
// Always 200 once structurally valid, regardless of downstream outcome;
// 400 only for malformed payloads.
func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		h.sendJSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if h.appSecret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if !VerifySignature(h.appSecret, body, sig) {
			h.logger.Warn("delivery rejected: bad signature")
			h.sendJSONError(w, http.StatusForbidden, "invalid signature")
			return
		}
	}

	result, err := ProcessPayload(body)
	if err != nil {
		h.logger.Warn("delivery rejected", "error", err)
		h.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if result.Message != nil {
		if !h.dispatcher.Dispatch(result.Message, result.ShouldRespond) {
			// Still acknowledged; the provider would only retry and hit the
			// same full queue
			h.logger.Warn("work queue full, message dropped",
				"provider_message_id", result.Message.ProviderID,
				"from", result.Message.From)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "received"})
}

// sendJSONError writes a JSON error response.
func (h *Handler) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
