// ABOUTME: HTTP-level tests for the webhook endpoint
// ABOUTME: Covers handshake statuses, delivery acks, signature gating, and dispatch

package webhook

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDispatcher captures dispatched messages for assertions.
type recordingDispatcher struct {
	mu       sync.Mutex
	messages []*Message
	responds []bool
	full     bool
}

func (d *recordingDispatcher) Dispatch(msg *Message, respond bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.full {
		return false
	}
	d.messages = append(d.messages, msg)
	d.responds = append(d.responds, respond)
	return true
}

func newTestHandler(appSecret string) (*Handler, *recordingDispatcher) {
	d := &recordingDispatcher{}
	return NewHandler("verify-secret", appSecret, d, nil), d
}

func TestHandler_Verify_Success(t *testing.T) {
	h, _ := newTestHandler("")

	q := url.Values{}
	q.Set("hub.mode", "subscribe")
	q.Set("hub.verify_token", "verify-secret")
	q.Set("hub.challenge", "314159")

	req := httptest.NewRequest(http.MethodGet, "/webhook?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "314159", string(body))
}

func TestHandler_Verify_WrongToken(t *testing.T) {
	h, _ := newTestHandler("")

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1", nil)
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_Delivery_AcksAndDispatches(t *testing.T) {
	h, d := newTestHandler("")

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(textPayload("hola")))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"received"}`, rec.Body.String())

	require.Len(t, d.messages, 1)
	assert.Equal(t, "hola", d.messages[0].Text)
	assert.True(t, d.responds[0])
}

func TestHandler_Delivery_MalformedPayload(t *testing.T) {
	h, d := newTestHandler("")

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{"object":"wrong"}`)))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, d.messages)
}

func TestHandler_Delivery_StatusOnlyStillAcked(t *testing.T) {
	h, d := newTestHandler("")

	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e1", "changes": [{
			"field": "messages",
			"value": {"messaging_product": "whatsapp", "statuses": [{"id": "wamid.X", "status": "read"}]}
		}]}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, d.messages)
}

func TestHandler_Delivery_SignatureRequired(t *testing.T) {
	h, d := newTestHandler("app-secret")
	body := textPayload("hola")

	// Missing signature
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, d.messages)

	// Valid signature
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign("app-secret", body))
	rec = httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, d.messages, 1)
}

func TestHandler_Delivery_FullQueueStillAcked(t *testing.T) {
	d := &recordingDispatcher{full: true}
	h := NewHandler("verify-secret", "", d, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(textPayload("hola")))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	// Backpressure never turns into a provider-visible failure
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler("")

	req := httptest.NewRequest(http.MethodDelete, "/webhook", nil)
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
