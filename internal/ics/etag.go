package ics

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Signer derives entity tags for exported documents.
type Signer struct {
	key []byte
}

// NewSigner keys the BLAKE2b-256 hash with secret. Secrets longer than the
// BLAKE2b key limit are compressed first.
func NewSigner(secret string) *Signer {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &Signer{key: key}
}

// ETag returns a strong entity tag for body.
func (s *Signer) ETag(body []byte) (string, error) {
	h, err := blake2b.New256(s.key)
	if err != nil {
		return "", fmt.Errorf("init etag hash: %w", err)
	}
	h.Write(body)
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`, nil
}
