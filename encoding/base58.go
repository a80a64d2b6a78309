package encoding

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeyLen and SignatureLen are the only lengths this protocol accepts
// once base58-decoded, per spec §4.1: any other length is a hard rejection.
const (
	PublicKeyLen = 32
	SignatureLen = 64
)

// DecodePublicKey base58-decodes addr and enforces it is exactly
// PublicKeyLen bytes.
func DecodePublicKey(addr string) ([]byte, error) {
	return decodeFixed(addr, PublicKeyLen)
}

// DecodeSignature base58-decodes sig and enforces it is exactly
// SignatureLen bytes.
func DecodeSignature(sig string) ([]byte, error) {
	return decodeFixed(sig, SignatureLen)
}

func decodeFixed(s string, want int) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("base58 decode: %w", err)
	}
	if len(b) != want {
		return nil, fmt.Errorf("base58 decode: got %d bytes, want %d", len(b), want)
	}
	return b, nil
}

// EncodeBase58 encodes raw bytes (a public key or a signature) as base58.
func EncodeBase58(b []byte) string {
	return base58.Encode(b)
}
