// ABOUTME: Package documentation for the tool registry
// ABOUTME: Describes the intent-rule matching model and the execution contract

// Package tools implements the capabilities the chatbot can invoke on a
// user's behalf and the keyword rules that select among them.
//
// A Registry pairs named Tool implementations with ordered intent rules.
// Rules are checked against the lowercased message text; the first match
// chooses the tool, and an optional Extract function derives the tool's
// input from the message. Execution always goes through SafeExecute, which
// converts errors and panics into a fixed apology so a misbehaving tool can
// never take down a conversation turn.
package tools
