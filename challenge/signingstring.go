// Package challenge builds the server's Challenge commitment (spec.md §4.2)
// and derives the fixed-format signing string both client and server must
// compute identically from it (spec.md §4.3).
package challenge

import (
	"fmt"

	"github.com/openkitx403/openkitx403/core"
	"github.com/openkitx403/openkitx403/encoding"
)

// SigningString derives the exact byte sequence the client signs and the
// server reconstructs from a decoded Challenge (spec.md §4.3). Every
// component — line separators, the blank line before "payload:", UTF-8
// encoding — is part of the wire contract: any deviation makes signatures
// produced by one implementation unverifiable by another.
func SigningString(c core.Challenge) ([]byte, error) {
	payload, err := encoding.CanonicalJSON(c)
	if err != nil {
		return nil, fmt.Errorf("signing string: %w", err)
	}
	s := "OpenKitx403 Challenge\n" +
		"\n" +
		"domain: " + c.Aud + "\n" +
		"server: " + c.ServerID + "\n" +
		"nonce: " + c.Nonce + "\n" +
		"ts: " + c.Ts + "\n" +
		"method: " + c.Method + "\n" +
		"path: " + c.Path + "\n" +
		"\n" +
		"payload: " + string(payload)
	return []byte(s), nil
}
