// Package sha256 digests listing keys for the de-duplication set.
package sha256

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmptyKey is returned for keys that are blank after trimming.
var ErrEmptyKey = errors.New("empty key")

// Hasher implements crawler.Hasher. Keys are trimmed of surrounding
// whitespace first, so "abc" and " abc\n" collapse to the same digest.
type Hasher struct{}

// New returns a Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex SHA-256 digest of the trimmed key.
func (h *Hasher) Hash(data []byte) (string, error) {
	key := bytes.TrimSpace(data)
	if len(key) == 0 {
		return "", ErrEmptyKey
	}
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:]), nil
}
