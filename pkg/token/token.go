// Package token mints opaque, prefixed bearer tokens.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// ErrGeneration indicates the system's random source failed.
var ErrGeneration = errors.New("token generation failed")

// tokenBytes gives 256 bits of entropy per token.
const tokenBytes = 32

// New returns an opaque unguessable token with the given prefix, e.g.
// "ps_" for buyer sessions and "at_" for purchase access tokens. The
// prefix makes leaked tokens attributable in logs without decoding.
func New(prefix string) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrGeneration, err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// Equal compares two tokens in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
