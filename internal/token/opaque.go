// Package token generates and digests opaque bearer tokens.
//
// A token is a random string with no embedded structure; the server keeps
// only its SHA-256 digest, so validity can only be established by lookup.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// DefaultBytes is the raw token entropy in bytes (256 bits).
const DefaultBytes = 32

// Generate returns a new base64url-encoded opaque token with n random bytes.
func Generate(n int) (string, error) {
	if n <= 0 {
		n = DefaultBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the base64url-encoded SHA-256 digest of a raw token.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
