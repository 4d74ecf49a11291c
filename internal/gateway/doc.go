// ABOUTME: Package documentation for the gateway orchestrator
// ABOUTME: Describes the ack-then-process flow and the shutdown order

// Package gateway wires the webhook endpoint to the conversation machine.
//
// The webhook handler only validates and acknowledges; everything else runs
// on a bounded worker pool fed through Dispatch. A TTL dedupe cache drops
// retried deliveries before they reach a worker, with the store's provider
// message id uniqueness as the durable backstop.
//
// Run owns the process lifecycle: startup session cleanup, the periodic
// expiry sweeper, the HTTP server, and a graceful shutdown that stops
// accepting webhooks, drains in-flight conversations, and closes the store.
package gateway
