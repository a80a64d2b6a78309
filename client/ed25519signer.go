package client

import (
	"context"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

// Ed25519Signer is the bundled in-process core.Signer adapter, for callers
// holding raw key material directly rather than delegating to an external
// wallet process.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

// NewEd25519Signer wraps an existing private key. The key must be exactly
// ed25519.PrivateKeySize (64) bytes.
func NewEd25519Signer(priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("client: private key is %d bytes, want %d", len(priv), ed25519.PrivateKeySize)
	}
	return &Ed25519Signer{priv: priv}, nil
}

func (s *Ed25519Signer) PublicKey() []byte {
	pub, ok := s.priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil
	}
	return []byte(pub)
}

func (s *Ed25519Signer) SignBytes(_ context.Context, msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}
