// ABOUTME: Conversation state machine driving one turn per inbound message
// ABOUTME: start -> analyze -> use_tool|respond -> finalize -> done, error from anywhere

package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charlabot/charla/internal/store"
	"github.com/charlabot/charla/internal/tools"
)

// Completer generates free-form reply text. Implementations are external
// services; the machine treats any failure as "unavailable" and falls back
// to canned replies.
type Completer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Inbound is one canonical message handed to the machine.
type Inbound struct {
	UserID            string // store user id
	SenderID          string // provider id of the sender
	Text              string
	Type              string // message log type ("text", "audio", ...)
	ProviderMessageID string
}

// Result is what one machine run produced.
type Result struct {
	SessionID string
	Reply     string
	Node      string // terminal node: done or error
	Duplicate bool   // true when the delivery was a suppressed retry
}

// Machine runs the fixed-shape conversation flow. One Run corresponds to
// exactly one inbound message; turns are appended in arrival order and
// never mutated afterwards.
type Machine struct {
	registry          *tools.Registry
	memory            *store.Memory
	completer         Completer
	completionTimeout time.Duration
	historyTurns      int
	logger            *slog.Logger
}

// NewMachine creates a conversation machine. completer may be nil, in which
// case every respond transition uses canned replies.
func NewMachine(registry *tools.Registry, memory *store.Memory, completer Completer, completionTimeout time.Duration, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	if completionTimeout <= 0 {
		completionTimeout = 15 * time.Second
	}
	return &Machine{
		registry:          registry,
		memory:            memory,
		completer:         completer,
		completionTimeout: completionTimeout,
		historyTurns:      8,
		logger:            logger.With("component", "convo"),
	}
}

// Run processes one inbound message through the machine. It never returns
// an error to the caller: every internal fault collapses into the error
// node, which still carries a user-visible apology.
func (m *Machine) Run(ctx context.Context, in Inbound) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("machine panicked", "user_id", in.UserID, "panic", fmt.Sprint(r))
			res = &Result{Reply: apologyReply, Node: NodeError}
		}
	}()

	sessionID, err := m.memory.GetOrCreateConversation(ctx, in.UserID)
	if err != nil {
		m.logger.Error("session resolution failed", "user_id", in.UserID, "error", err)
		return &Result{Reply: apologyReply, Node: NodeError}
	}

	state := m.loadState(ctx, in.UserID, sessionID)

	// start: the user turn is recorded before anything acts on it.
	state.Node = NodeStart
	state.Append(RoleUser, in.Text)
	msgType := in.Type
	if msgType == "" {
		msgType = "text"
	}
	if _, err := m.memory.AppendMessage(ctx, sessionID, store.DirectionIncoming, msgType, in.Text, in.ProviderMessageID); errors.Is(err, store.ErrDuplicateMessage) {
		m.logger.Info("retried delivery, skipping",
			"user_id", in.UserID,
			"provider_message_id", in.ProviderMessageID)
		return &Result{SessionID: sessionID, Node: NodeDone, Duplicate: true}
	}

	// analyze: first matching intent rule wins; no match falls through to
	// generation.
	state.Node = NodeAnalyze
	state.SelectedTool, state.ToolInput = "", ""

	var reply string
	if name, input, ok := m.registry.Match(in.Text); ok {
		state.Node = NodeUseTool
		state.SelectedTool = name
		state.ToolInput = input
		reply = m.runTool(ctx, in.SenderID, name, input)
		state.LastToolResult = reply
	} else {
		state.Node = NodeRespond
		reply = m.respond(ctx, state)
	}
	state.Append(RoleAssistant, reply)

	// finalize: persistence is best-effort; the computed reply is returned
	// regardless.
	state.Node = NodeFinalize
	m.persist(ctx, in.UserID, sessionID, state, reply)
	state.Node = NodeDone

	return &Result{SessionID: sessionID, Reply: reply, Node: NodeDone}
}

// loadState restores the user's prior state, or starts fresh when nothing
// durable exists.
func (m *Machine) loadState(ctx context.Context, userID, sessionID string) *State {
	data, err := m.memory.LoadState(ctx, userID)
	if errors.Is(err, store.ErrNotFound) || len(data) == 0 {
		return m.freshState(ctx, sessionID)
	}
	if err != nil {
		m.logger.Warn("state load failed, starting fresh", "user_id", userID, "error", err)
		return m.freshState(ctx, sessionID)
	}

	state, err := DecodeState(data)
	if err != nil {
		m.logger.Warn("corrupt stored state, starting fresh", "user_id", userID, "error", err)
		return m.freshState(ctx, sessionID)
	}
	state.SessionID = sessionID
	return state
}

// freshState starts a new state, seeding the turn window from the durable
// message log. A lost or corrupt state blob then still leaves the completer
// with the conversation so far.
func (m *Machine) freshState(ctx context.Context, sessionID string) *State {
	state := NewState(sessionID)
	msgs, err := m.memory.History(ctx, sessionID, m.historyTurns)
	if err != nil {
		m.logger.Warn("history load failed", "session_id", sessionID, "error", err)
		return state
	}
	for _, msg := range msgs {
		role := RoleUser
		if msg.Direction == store.DirectionOutgoing {
			role = RoleAssistant
		}
		state.Turns = append(state.Turns, Turn{Role: role, Text: msg.Content, Timestamp: msg.CreatedAt})
	}
	return state
}

// runTool resolves and executes the selected tool. Lookup failures and tool
// faults both collapse into the apology text; the machine still finalizes.
func (m *Machine) runTool(ctx context.Context, senderID, name, input string) string {
	tool, ok := m.registry.Get(name)
	if !ok {
		m.logger.Error("matched rule references unknown tool", "tool", name)
		return apologyReply
	}
	return tools.SafeExecute(ctx, tool, tools.Request{UserID: senderID, Input: input}, m.logger)
}

// respond asks the completer for free-form text, falling back to canned
// replies when it is absent, slow, or erroring. The fallback keys off the
// latest user turn, which was appended in start.
func (m *Machine) respond(ctx context.Context, state *State) string {
	text := state.LastUserText()
	if m.completer == nil {
		return cannedReply(text)
	}

	genCtx, cancel := context.WithTimeout(ctx, m.completionTimeout)
	defer cancel()

	reply, err := m.completer.Generate(genCtx, m.buildPrompt(state))
	if err != nil {
		m.logger.Warn("generation failed, using canned reply", "error", err)
		return cannedReply(text)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return cannedReply(text)
	}
	return reply
}

// buildPrompt renders the recent turn window as a plain transcript ending
// with the latest user turn.
func (m *Machine) buildPrompt(state *State) string {
	turns := state.Turns
	if len(turns) > m.historyTurns {
		turns = turns[len(turns)-m.historyTurns:]
	}

	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case RoleUser:
			b.WriteString("Usuario: ")
		case RoleAssistant:
			b.WriteString("Asistente: ")
		default:
			b.WriteString("Sistema: ")
		}
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	b.WriteString("Asistente:")
	return b.String()
}

// persist writes the updated session state and the outgoing message log
// entry. Failures are logged and swallowed so the reply still reaches the
// user.
func (m *Machine) persist(ctx context.Context, userID, sessionID string, state *State, reply string) {
	stateCopy := *state
	stateCopy.Node = NodeDone
	data, err := stateCopy.Encode()
	if err != nil {
		m.logger.Error("state encode failed, skipping save", "user_id", userID, "error", err)
	} else if err := m.memory.SaveState(ctx, userID, sessionID, data); err != nil {
		m.logger.Error("state save failed", "user_id", userID, "error", err)
	}

	if _, err := m.memory.AppendMessage(ctx, sessionID, store.DirectionOutgoing, "text", reply, ""); err != nil {
		m.logger.Error("outgoing message log failed", "session_id", sessionID, "error", err)
	}
}
