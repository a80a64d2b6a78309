// Package client implements the caller side of the protocol: a wallet
// capability set (spec.md §9: "a discovery+capability set
// {has_public_key, can_sign_bytes}; each concrete wallet is a separate
// adapter"), a bundled in-process Ed25519 adapter, and Respond, which
// turns a received challenge header into an Authorization header value.
package client

import "github.com/openkitx403/openkitx403/core"

// HasPublicKey and CanSignBytes are the two capabilities spec.md §9 names.
// core.Signer already expresses both as a single interface; these named
// functions exist so call sites can probe a signer's capabilities
// independently, the way a discovery-based wallet adapter (e.g. a browser
// extension bridge) would.
func HasPublicKey(s core.Signer) bool {
	return s != nil && len(s.PublicKey()) == 32
}

func CanSignBytes(s core.Signer) bool {
	return s != nil
}
