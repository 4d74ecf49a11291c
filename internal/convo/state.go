// ABOUTME: Conversation state types and their durable JSON form
// ABOUTME: One state per user; turns are append-only and never rewritten

package convo

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role tags who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Machine nodes. Done and NodeError are terminal.
const (
	NodeStart    = "start"
	NodeAnalyze  = "analyze"
	NodeUseTool  = "use_tool"
	NodeRespond  = "respond"
	NodeFinalize = "finalize"
	NodeDone     = "done"
	NodeError    = "error"
)

// maxTurns bounds the serialized state. Older turns fall off the front;
// the full history stays in the message log.
const maxTurns = 40

// Turn is one utterance in a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the in-memory conversation state for a single user. Its durable
// form is the serialized session row; it exists in this shape only while a
// turn is being processed.
type State struct {
	SessionID string `json:"session_id"`
	Node      string `json:"node"`
	Turns     []Turn `json:"turns"`

	// Scratch data for the current turn.
	SelectedTool   string `json:"selected_tool,omitempty"`
	ToolInput      string `json:"tool_input,omitempty"`
	LastToolResult string `json:"last_tool_result,omitempty"`

	// Extra holds open-ended key-value notes that do not fit the typed
	// fields above.
	Extra map[string]string `json:"extra,omitempty"`
}

// NewState creates a fresh state bound to a session.
func NewState(sessionID string) *State {
	return &State{
		SessionID: sessionID,
		Node:      NodeStart,
	}
}

// DecodeState parses the serialized session payload.
func DecodeState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding conversation state: %w", err)
	}
	return &s, nil
}

// Encode serializes the state for the session row.
func (s *State) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding conversation state: %w", err)
	}
	return data, nil
}

// Append adds a turn and trims the window when it exceeds maxTurns.
func (s *State) Append(role Role, text string) {
	s.Turns = append(s.Turns, Turn{Role: role, Text: text, Timestamp: time.Now().UTC()})
	if len(s.Turns) > maxTurns {
		s.Turns = s.Turns[len(s.Turns)-maxTurns:]
	}
}

// LastUserText returns the text of the most recent user turn, or "".
func (s *State) LastUserText() string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleUser {
			return s.Turns[i].Text
		}
	}
	return ""
}
