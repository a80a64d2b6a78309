package core

import (
	"context"
	"time"
)

// ReplayStore is the abstract key->expiry set the verifier consults at
// spec.md §4.6 step 12. Implementations live in package replay: a bounded
// in-memory LRU (the default), a Redis-backed store, and a SQL-backed
// store. Check and Store together must behave as an atomic
// compare-and-insert per key when called concurrently for the same key
// (spec.md §5) — callers rely on that, not on any ordering between calls
// for different keys.
type ReplayStore interface {
	// Check reports whether key is currently present and unexpired.
	Check(ctx context.Context, key string) (bool, error)
	// Store inserts key with an expiry of ttl from now.
	Store(ctx context.Context, key string, ttl time.Duration) error
}

// TokenGate is the user-supplied predicate gating access on external state
// (spec.md §4.6 step 14, e.g. on-chain token holdings). It is invoked only
// after signature verification succeeds (spec.md §4.6, §7) so that a forged
// request can never trigger it. A non-nil error is treated the same as a
// false return: token_gate_failed, with the error surfaced as the failure
// detail.
type TokenGate func(ctx context.Context, addr string) (bool, error)

// Signer is the client-side wallet capability set spec.md §9 describes:
// "has_public_key" and "can_sign_bytes", kept separate from any concrete
// wallet so browser/extension adapters and in-process key material can
// implement the same interface.
type Signer interface {
	// PublicKey returns the raw 32-byte Ed25519 public key.
	PublicKey() []byte
	// SignBytes returns the raw 64-byte Ed25519 signature over msg.
	SignBytes(ctx context.Context, msg []byte) ([]byte, error)
}
