// ABOUTME: Package documentation for the conversation state machine
// ABOUTME: Explains the node flow and the fault-absorption rules

// Package convo implements the per-user conversation state machine.
//
// Each inbound message drives exactly one run through a fixed node flow:
//
//	start -> analyze -> {use_tool | respond} -> finalize -> done
//
// with an error node reachable from any step. analyze matches the message
// against the tool registry's intent rules; a match executes the selected
// tool, no match falls through to the completion collaborator, and a failed
// or absent collaborator falls back to canned replies.
//
// Every fault is absorbed inside the machine: tool errors become an apology
// turn, generation failures become canned text, and persistence failures
// are logged and swallowed so the already-computed reply is still returned.
// Nothing in a run propagates an error back to the caller.
package convo
