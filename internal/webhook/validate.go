package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// validateGitHubSignature checks the hex-encoded "sha256=<mac>" value
// GitHub sends in X-Hub-Signature-256. An empty secret always rejects.
func validateGitHubSignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// validateSentrySignature checks the raw hex HMAC-SHA256 value Sentry
// sends in Sentry-Hook-Signature. An empty secret always rejects.
func validateSentrySignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// validateGenericSecret compares a header-provided value against the
// endpoint's configured shared secret. An empty configured secret always
// rejects, even if the request also sends an empty value.
func validateGenericSecret(provided, configured string) bool {
	if configured == "" || provided == "" {
		return false
	}
	return hmac.Equal([]byte(provided), []byte(configured))
}
