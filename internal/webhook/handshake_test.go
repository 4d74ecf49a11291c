// ABOUTME: Tests for webhook subscription handshake verification
// ABOUTME: Valid handshakes echo the challenge; any mismatch is rejected

package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyHandshake_Valid(t *testing.T) {
	challenge, err := VerifyHandshake("subscribe", "secret-token", "1158201444", "secret-token")
	require.NoError(t, err)
	assert.Equal(t, "1158201444", challenge)
}

func TestVerifyHandshake_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		token     string
		challenge string
	}{
		{"wrong mode", "unsubscribe", "secret-token", "123"},
		{"empty mode", "", "secret-token", "123"},
		{"wrong token", "subscribe", "guess", "123"},
		{"empty token", "subscribe", "", "123"},
		{"empty challenge", "subscribe", "secret-token", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyHandshake(tt.mode, tt.token, tt.challenge, "secret-token")
			assert.ErrorIs(t, err, ErrVerificationFailed)
		})
	}
}
