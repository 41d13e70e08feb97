package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerifier(t *testing.T) {
	const secret = "shhh-app-secret"
	verifier := NewWebhookVerifier(secret)
	body := []byte(`{"domain":"shop1.myshopify.com"}`)

	t.Run("accepts a correctly signed body", func(t *testing.T) {
		if !verifier.Valid(body, sign(secret, body)) {
			t.Fatal("valid signature rejected")
		}
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		signature := sign(secret, body)
		tampered := append([]byte(nil), body...)
		tampered[0] ^= 0x01
		if verifier.Valid(tampered, signature) {
			t.Fatal("tampered body accepted")
		}
	})

	t.Run("rejects a tampered signature", func(t *testing.T) {
		signature := []byte(sign(secret, body))
		signature[0] ^= 0x01
		if verifier.Valid(body, string(signature)) {
			t.Fatal("tampered signature accepted")
		}
	})

	t.Run("rejects a signature under the wrong secret", func(t *testing.T) {
		if verifier.Valid(body, sign("other-secret", body)) {
			t.Fatal("foreign signature accepted")
		}
	})

	t.Run("rejects an empty signature", func(t *testing.T) {
		if verifier.Valid(body, "") {
			t.Fatal("empty signature accepted")
		}
	})

	t.Run("rejects garbage that is not base64", func(t *testing.T) {
		if verifier.Valid(body, "not-base64!!") {
			t.Fatal("malformed signature accepted")
		}
	})
}
