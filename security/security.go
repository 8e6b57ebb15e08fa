// Package security implements API-key hashing and admin-token parsing for
// the service's two auth surfaces: per-request X-API-Key on the data plane
// and Authorization: Bearer on the control plane.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// HashAPIKey computes the deterministic HMAC-SHA256 hex digest of raw using
// salt as the HMAC key (a pepper, not a per-record salt).
func HashAPIKey(raw, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// ConstantTimeEqual compares two strings in constant time.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateRawKey returns a new URL-safe random API key, analogous to
// secrets.token_urlsafe(32) in the reference implementation.
func GenerateRawKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ParseBearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. ok is false if the header is missing or malformed.
func ParseBearerToken(header string) (token string, ok bool) {
	const prefix = "bearer "
	if header == "" || len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
