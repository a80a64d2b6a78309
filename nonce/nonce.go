// Package nonce generates the single-use random values spec.md §2
// requires: cryptographically secure, >=96 bits of entropy, emitted as
// base64url. Unlike boulder's counter-windowed core.NonceService (visible
// in the teacher's core/nonce_test.go via its latest/maxUsed fields), this
// protocol's nonce is not itself a replay-protection mechanism — that's the
// replay package's job, keyed on (addr, nonce). The nonce source here is
// pure randomness with no server-side state to track.
package nonce

import (
	"crypto/rand"
	"fmt"

	"github.com/openkitx403/openkitx403/encoding"
)

// MinEntropyBytes is 96 bits, the floor spec.md §2 sets.
const MinEntropyBytes = 12

// New returns a fresh base64url-encoded nonce with MinEntropyBytes of
// crypto/rand entropy.
func New() (string, error) {
	buf := make([]byte, MinEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	return encoding.EncodeB64URL(buf), nil
}
