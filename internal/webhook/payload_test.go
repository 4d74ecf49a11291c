// ABOUTME: Tests for webhook payload validation and message extraction
// ABOUTME: Covers structural rejection, type classification, and non-processable cases

package webhook

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textPayload builds a minimal valid delivery carrying one text message.
func textPayload(body string) []byte {
	return []byte(fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"contacts": [{"wa_id": "5215550001", "profile": {"name": "Ana"}}],
					"messages": [{
						"from": "5215550001",
						"id": "wamid.HBgL",
						"timestamp": "1700000000",
						"type": "text",
						"text": {"body": %q}
					}]
				}
			}]
		}]
	}`, body))
}

func TestProcessPayload_TextMessage(t *testing.T) {
	result, err := ProcessPayload(textPayload("hola, ¿qué hora es?"))
	require.NoError(t, err)
	require.NotNil(t, result.Message)

	msg := result.Message
	assert.Equal(t, "wamid.HBgL", msg.ProviderID)
	assert.Equal(t, "5215550001", msg.From)
	assert.Equal(t, "Ana", msg.ProfileName)
	assert.Equal(t, TypeText, msg.Type)
	assert.Equal(t, "hola, ¿qué hora es?", msg.Text)
	assert.Equal(t, int64(1700000000), msg.Timestamp.Unix())
	assert.True(t, result.ShouldRespond)
}

func TestProcessPayload_RejectsWrongObject(t *testing.T) {
	result, err := ProcessPayload([]byte(`{"object": "instagram", "entry": [{"changes": [{}]}]}`))
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestProcessPayload_RejectsEmptyEntries(t *testing.T) {
	result, err := ProcessPayload([]byte(`{"object": "whatsapp_business_account", "entry": []}`))
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestProcessPayload_RejectsEntryWithoutChanges(t *testing.T) {
	raw := []byte(`{"object": "whatsapp_business_account", "entry": [{"id": "e1", "changes": []}]}`)
	result, err := ProcessPayload(raw)
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestProcessPayload_RejectsWrongProduct(t *testing.T) {
	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e1", "changes": [{
			"field": "messages",
			"value": {"messaging_product": "messenger", "messages": []}
		}]}]
	}`)
	result, err := ProcessPayload(raw)
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestProcessPayload_RejectsInvalidJSON(t *testing.T) {
	result, err := ProcessPayload([]byte(`{not json`))
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestProcessPayload_WhitespaceTextNotProcessable(t *testing.T) {
	result, err := ProcessPayload(textPayload("  "))
	require.NoError(t, err)
	assert.Nil(t, result.Message)
	assert.False(t, result.ShouldRespond)
}

func TestProcessPayload_StatusOnlyDelivery(t *testing.T) {
	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e1", "changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"statuses": [{"id": "wamid.X", "status": "delivered"}]
			}
		}]}]
	}`)
	result, err := ProcessPayload(raw)
	require.NoError(t, err)
	assert.Nil(t, result.Message)
	assert.False(t, result.ShouldRespond)
}

func TestProcessPayload_AudioMessage(t *testing.T) {
	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e1", "changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"messages": [{
					"from": "5215550001",
					"id": "wamid.audio1",
					"timestamp": "1700000000",
					"type": "audio",
					"audio": {"id": "media-123"}
				}]
			}
		}]}]
	}`)
	result, err := ProcessPayload(raw)
	require.NoError(t, err)
	require.NotNil(t, result.Message)
	assert.Equal(t, TypeAudio, result.Message.Type)
	assert.Equal(t, "media-123", result.Message.MediaID)
	assert.True(t, result.ShouldRespond)
}

func TestProcessPayload_ImageAcknowledgedNotAnswered(t *testing.T) {
	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e1", "changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"messages": [{
					"from": "5215550001",
					"id": "wamid.img1",
					"timestamp": "1700000000",
					"type": "image",
					"image": {"id": "media-img", "caption": "mira esto"}
				}]
			}
		}]}]
	}`)
	result, err := ProcessPayload(raw)
	require.NoError(t, err)
	require.NotNil(t, result.Message)
	assert.Equal(t, TypeImage, result.Message.Type)
	assert.Equal(t, "mira esto", result.Message.Caption)
	assert.False(t, result.ShouldRespond)
}

func TestProcessPayload_LocationMessage(t *testing.T) {
	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e1", "changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"messages": [{
					"from": "5215550001",
					"id": "wamid.loc1",
					"timestamp": "1700000000",
					"type": "location",
					"location": {"latitude": 19.4326, "longitude": -99.1332}
				}]
			}
		}]}]
	}`)
	result, err := ProcessPayload(raw)
	require.NoError(t, err)
	require.NotNil(t, result.Message)
	assert.Equal(t, TypeLocation, result.Message.Type)
	assert.InDelta(t, 19.4326, result.Message.Latitude, 0.0001)
	assert.False(t, result.ShouldRespond)
}

func TestProcessPayload_MissingSenderSkipped(t *testing.T) {
	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e1", "changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"messages": [{
					"from": "",
					"id": "wamid.anon",
					"type": "text",
					"text": {"body": "hola"}
				}]
			}
		}]}]
	}`)
	result, err := ProcessPayload(raw)
	require.NoError(t, err)
	assert.Nil(t, result.Message)
}

func TestProcessPayload_UnsupportedTypeSkipped(t *testing.T) {
	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e1", "changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"messages": [{
					"from": "5215550001",
					"id": "wamid.sticker",
					"timestamp": "1700000000",
					"type": "sticker"
				}]
			}
		}]}]
	}`)
	result, err := ProcessPayload(raw)
	require.NoError(t, err)
	assert.Nil(t, result.Message)
}

func TestProcessPayload_FirstProcessableWins(t *testing.T) {
	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e1", "changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"messages": [
					{"from": "5215550001", "id": "wamid.bad", "type": "sticker"},
					{"from": "5215550001", "id": "wamid.good", "timestamp": "1700000000", "type": "text", "text": {"body": "primero"}},
					{"from": "5215550001", "id": "wamid.second", "timestamp": "1700000001", "type": "text", "text": {"body": "segundo"}}
				]
			}
		}]}]
	}`)
	result, err := ProcessPayload(raw)
	require.NoError(t, err)
	require.NotNil(t, result.Message)
	assert.Equal(t, "wamid.good", result.Message.ProviderID)
	assert.Equal(t, "primero", result.Message.Text)
}

func TestProcessPayload_BadTimestampFallsBackToNow(t *testing.T) {
	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e1", "changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"messages": [{
					"from": "5215550001",
					"id": "wamid.nots",
					"timestamp": "not-a-number",
					"type": "text",
					"text": {"body": "hola"}
				}]
			}
		}]}]
	}`)
	result, err := ProcessPayload(raw)
	require.NoError(t, err)
	require.NotNil(t, result.Message)
	assert.False(t, result.Message.Timestamp.IsZero())
}
