// Package auth implements the shared-secret authentication used by the
// webhook endpoints: HMAC-SHA256 payload signatures and deterministic
// per-user API keys.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// apiKeyLength is the truncated hex length of derived API keys.
const apiKeyLength = 32

// Sign computes the hex-encoded HMAC-SHA256 signature of payload under
// secret. Senders sign the serialized transaction value with the shared
// webhook secret; VerifySignature recomputes and compares.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the valid HMAC-SHA256 of
// payload under secret. The comparison is constant time; a malformed or
// empty signature is an ordinary mismatch, never a panic.
func VerifySignature(secret, payload []byte, signature string) bool {
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// APIKey derives the per-user key a remote script presents to the
// protected extraction endpoint. The key is a truncated keyed hash of
// the user identity: recomputable on demand, never persisted.
func APIKey(secret []byte, userID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))[:apiKeyLength]
}

// VerifyAPIKey compares a presented key against the derived key for
// userID in constant time.
func VerifyAPIKey(secret []byte, userID, presented string) bool {
	return hmac.Equal([]byte(APIKey(secret, userID)), []byte(presented))
}
