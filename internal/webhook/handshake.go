// ABOUTME: Webhook subscription handshake verification
// ABOUTME: Validates the hub.mode/hub.verify_token/hub.challenge exchange

package webhook

import (
	"crypto/subtle"
	"errors"
)

// subscribeMode is the only hub.mode the provider sends for verification.
const subscribeMode = "subscribe"

// ErrVerificationFailed is returned when a handshake request does not match
// the configured verify token. Callers answer with an authentication-failure
// status, never a server error.
var ErrVerificationFailed = errors.New("webhook verification failed")

// VerifyHandshake checks a subscription handshake and returns the challenge
// to echo back. The token comparison is constant time.
func VerifyHandshake(mode, token, challenge, verifyToken string) (string, error) {
	if mode != subscribeMode {
		return "", ErrVerificationFailed
	}
	if challenge == "" {
		return "", ErrVerificationFailed
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(verifyToken)) != 1 {
		return "", ErrVerificationFailed
	}
	return challenge, nil
}
