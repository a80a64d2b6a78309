// Package replay implements the abstract key->expiry set spec.md §4.5
// defines as core.ReplayStore: a bounded in-memory LRU (the default), a
// Redis-backed store, and a SQL-backed store, any of which a host can swap
// in via core.Config.ReplayStore.
package replay

import (
	"context"
	"time"

	"github.com/openkitx403/openkitx403/core"
)

// AtomicStore is an optional capability a core.ReplayStore implementation
// can provide: a single Check-and-insert operation that is atomic with
// respect to other concurrent calls for the same key (spec.md §5's
// "compare-and-insert primitive"). spec.md §4.5 defines the contract as two
// separate operations (Check, Store) so that a minimal user-supplied store
// only has to implement those two methods — but the two-call sequence
// has an inherent race between the Check and the Store unless something
// holds a lock across both. Every backend this package ships
// (memory, redis, sql) implements AtomicStore so the verifier's
// replay step is race-free by default; the verify package's unexported
// checkAndStore helper falls back to
// the plain two-call sequence for any core.ReplayStore that doesn't.
type AtomicStore interface {
	core.ReplayStore
	// CheckAndStore atomically checks key and, if absent/expired, stores it
	// with the given ttl in one operation. It reports replayed=true iff key
	// was already present and unexpired.
	CheckAndStore(ctx context.Context, key string, ttl time.Duration) (replayed bool, err error)
}

// Key formats the replay-store key per spec.md §4.5: "<addr>:<nonce>".
func Key(addr, nonce string) string {
	return addr + ":" + nonce
}
