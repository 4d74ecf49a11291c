// ABOUTME: WhatsApp Cloud API webhook payload parsing and validation
// ABOUTME: Extracts the first processable message and classifies its type

package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// expectedObject is the top-level tag the Cloud API puts on webhook deliveries.
const expectedObject = "whatsapp_business_account"

// expectedProduct is the product tag carried by messages-field changes.
const expectedProduct = "whatsapp"

// MessageType classifies an inbound message.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeAudio    MessageType = "audio"
	TypeDocument MessageType = "document"
	TypeLocation MessageType = "location"
	TypeContacts MessageType = "contacts"
)

// Message is the canonical inbound unit extracted from a webhook delivery.
// Immutable once returned.
type Message struct {
	ProviderID  string // wamid, globally unique, used for dedup
	From        string // sender wa_id
	ProfileName string // from contacts[], optional
	Timestamp   time.Time
	Type        MessageType

	Text      string  // text body
	MediaID   string  // audio/image/video/document media id
	Caption   string  // media caption, optional
	Latitude  float64 // location only
	Longitude float64 // location only
	Contact   string  // first shared contact's formatted name
}

// Result is the outcome of processing a structurally valid payload.
// Message is nil when the delivery carried nothing processable (status-only
// updates, unsupported types, blank text).
type Result struct {
	Message       *Message
	ShouldRespond bool
}

// payload mirrors the Cloud API webhook JSON shape.
type payload struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID      string   `json:"id"`
	Changes []change `json:"changes"`
}

type change struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Contacts         []contactEntry   `json:"contacts"`
	Messages         []inboundMessage `json:"messages"`
	Statuses         []statusEntry    `json:"statuses"`
}

type contactEntry struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type statusEntry struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type inboundMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`

	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Audio    *mediaRef `json:"audio"`
	Image    *mediaRef `json:"image"`
	Video    *mediaRef `json:"video"`
	Document *mediaRef `json:"document"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Contacts []struct {
		Name struct {
			FormattedName string `json:"formatted_name"`
		} `json:"name"`
	} `json:"contacts"`
}

type mediaRef struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
}

// ProcessPayload validates the structure of a webhook delivery and extracts
// the first processable message.
//
// A non-nil error means the payload is malformed and the caller should answer
// with a client-error status. A nil error with a nil Result.Message means the
// delivery was valid but carried nothing to act on (the caller still
// acknowledges it).
func ProcessPayload(raw []byte) (*Result, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}

	if p.Object != expectedObject {
		return nil, fmt.Errorf("unexpected object %q, want %q", p.Object, expectedObject)
	}
	if len(p.Entry) == 0 {
		return nil, fmt.Errorf("payload has no entries")
	}

	for i, e := range p.Entry {
		if len(e.Changes) == 0 {
			return nil, fmt.Errorf("entry %d has no changes", i)
		}
		for _, c := range e.Changes {
			if c.Field != "messages" {
				continue
			}
			if c.Value.MessagingProduct != expectedProduct {
				return nil, fmt.Errorf("unexpected messaging_product %q, want %q", c.Value.MessagingProduct, expectedProduct)
			}

			for _, im := range c.Value.Messages {
				msg := extractMessage(im, c.Value.Contacts)
				if msg == nil {
					continue
				}
				return &Result{
					Message:       msg,
					ShouldRespond: shouldRespond(msg.Type),
				}, nil
			}
		}
	}

	// Structurally valid but nothing processable: status updates, unsupported
	// message kinds, or blank text
	return &Result{}, nil
}

// shouldRespond reports whether a reply is owed for the message type.
// Media and location/contact messages are acknowledged but not auto-replied to.
func shouldRespond(t MessageType) bool {
	return t == TypeText || t == TypeAudio
}

// extractMessage converts one raw webhook message into the canonical form.
// Returns nil when the message is not processable.
func extractMessage(im inboundMessage, contacts []contactEntry) *Message {
	if im.From == "" {
		return nil
	}

	msg := &Message{
		ProviderID: im.ID,
		From:       im.From,
		Timestamp:  parseUnixTimestamp(im.Timestamp),
	}

	for _, c := range contacts {
		if c.WaID == im.From {
			msg.ProfileName = c.Profile.Name
			break
		}
	}

	switch im.Type {
	case "text":
		if im.Text == nil || strings.TrimSpace(im.Text.Body) == "" {
			return nil
		}
		msg.Type = TypeText
		msg.Text = im.Text.Body
	case "audio":
		if im.Audio == nil || im.Audio.ID == "" {
			return nil
		}
		msg.Type = TypeAudio
		msg.MediaID = im.Audio.ID
	case "image":
		if im.Image == nil {
			return nil
		}
		msg.Type = TypeImage
		msg.MediaID = im.Image.ID
		msg.Caption = im.Image.Caption
	case "video":
		if im.Video == nil {
			return nil
		}
		msg.Type = TypeVideo
		msg.MediaID = im.Video.ID
		msg.Caption = im.Video.Caption
	case "document":
		if im.Document == nil {
			return nil
		}
		msg.Type = TypeDocument
		msg.MediaID = im.Document.ID
		msg.Caption = im.Document.Caption
	case "location":
		if im.Location == nil {
			return nil
		}
		msg.Type = TypeLocation
		msg.Latitude = im.Location.Latitude
		msg.Longitude = im.Location.Longitude
	case "contacts":
		if len(im.Contacts) == 0 {
			return nil
		}
		msg.Type = TypeContacts
		msg.Contact = im.Contacts[0].Name.FormattedName
	default:
		return nil
	}

	return msg
}

// parseUnixTimestamp converts the provider's unix-seconds string. A missing
// or malformed timestamp falls back to the current time; ingestion never
// fails on it.
func parseUnixTimestamp(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
