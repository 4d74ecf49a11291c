// Package webhook implements the WhatsApp Cloud API webhook surface:
// subscription handshake verification, optional X-Hub-Signature-256
// checking, payload validation, and canonical message extraction.
//
// The provider delivers at-least-once and retries anything it does not see
// acknowledged quickly. The handlers here therefore validate structure,
// extract the first processable message, hand it to a Dispatcher, and
// return; nothing in this package blocks on conversation processing.
package webhook
