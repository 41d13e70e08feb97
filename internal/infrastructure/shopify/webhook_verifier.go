package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// WebhookVerifier checks inbound callback authenticity against the shared app
// secret.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a verifier for the given shared secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Valid reports whether providedSignature is the base64-encoded HMAC-SHA256
// of rawBody under the shared secret. rawBody must be the untouched original
// byte sequence; any re-serialization of the request body invalidates the
// check. A missing or malformed signature is a normal false, never an error.
func (v *WebhookVerifier) Valid(rawBody []byte, providedSignature string) bool {
	if providedSignature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(providedSignature))
}
