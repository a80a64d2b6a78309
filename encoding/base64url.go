// Package encoding provides the wire-format primitives shared by every
// OpenKitx403 component: unpadded base64url, Bitcoin-alphabet base58,
// canonical JSON, and second-precision RFC 3339 timestamps. None of these
// carry protocol semantics on their own; they exist so the challenge
// builder, the signing-string derivation, and the verifier all produce and
// consume byte-identical representations.
package encoding

import "encoding/base64"

// EncodeB64URL encodes data as unpadded base64url (RFC 4648 §5).
func EncodeB64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeB64URL decodes unpadded base64url. It tolerates a padded variant
// (older clients sometimes emit one) by stripping any trailing "=" before
// decoding, but it never emits padding itself.
func DecodeB64URL(s string) ([]byte, error) {
	for len(s) > 0 && s[len(s)-1] == '=' {
		s = s[:len(s)-1]
	}
	return base64.RawURLEncoding.DecodeString(s)
}
