// Package auth compares shared secrets presented by internal callers.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashKey returns the hex SHA-256 of the trimmed key.
func HashKey(key string) string {
	key = strings.TrimSpace(key)

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// Matcher checks presented keys against one expected secret. Only the
// digest of the secret is held.
type Matcher struct {
	digest []byte
}

func NewMatcher(secret string) *Matcher {
	return &Matcher{digest: []byte(HashKey(secret))}
}

// Match reports whether key equals the secret. Digests have a fixed length,
// so the comparison time does not depend on the key length.
func (m *Matcher) Match(key string) bool {
	return subtle.ConstantTimeCompare([]byte(HashKey(key)), m.digest) == 1
}
