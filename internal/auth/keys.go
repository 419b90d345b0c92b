// Package auth verifies API tokens presented to the job service.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// callerIDLen is the number of hash characters exposed as a caller id.
const callerIDLen = 12

// HashKey returns a SHA-256 hash of the key.
func HashKey(key string) string {
	key = strings.TrimSpace(key)

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// TokenSet holds the hashes of the accepted API tokens.
type TokenSet struct {
	hashes []string
}

// NewTokenSet hashes tokens, skipping blank entries.
func NewTokenSet(tokens []string) *TokenSet {
	s := &TokenSet{hashes: make([]string, 0, len(tokens))}
	for _, t := range tokens {
		if strings.TrimSpace(t) == "" {
			continue
		}
		s.hashes = append(s.hashes, HashKey(t))
	}
	return s
}

// Empty reports whether no tokens are configured.
func (s *TokenSet) Empty() bool {
	return len(s.hashes) == 0
}

// Match reports whether token is accepted and returns a short caller id
// derived from its hash. Every configured hash is compared.
func (s *TokenSet) Match(token string) (string, bool) {
	hash := HashKey(token)
	matched := 0
	for _, h := range s.hashes {
		matched |= subtle.ConstantTimeCompare([]byte(hash), []byte(h))
	}
	if matched != 1 {
		return "", false
	}
	return hash[:callerIDLen], true
}
