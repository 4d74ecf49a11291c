// ABOUTME: X-Hub-Signature-256 verification for webhook deliveries
// ABOUTME: Constant-time HMAC-SHA256 comparison over the raw request body

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefix is the scheme tag on the X-Hub-Signature-256 header.
const signaturePrefix = "sha256="

// VerifySignature checks the provider's HMAC signature over the raw body.
// The header value has the form "sha256=<hex digest>". Any malformed header
// is reported as invalid; this function never panics.
func VerifySignature(appSecret string, body []byte, header string) bool {
	if appSecret == "" || header == "" {
		return false
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}

	supplied, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(supplied, mac.Sum(nil))
}
