// ABOUTME: Package documentation for the provider-facing collaborators
// ABOUTME: Sender, completer, and transcriber live here as plain HTTP clients

// Package wacloud holds the outward-facing HTTP collaborators: outbound
// message delivery through the WhatsApp Cloud (Graph) API, free-form reply
// generation through an OpenAI-compatible chat endpoint, and voice-note
// transcription. Each client takes a base URL so tests can point it at a
// local httptest server.
package wacloud
