package replay

import (
	"context"
	"hash/fnv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmhodges/clock"
	deadlock "github.com/sasha-s/go-deadlock"
)

// numShards splits the bounded cache into independently-locked partitions
// so Check/Store calls for unrelated keys never contend on the same mutex
// (spec.md §5's "short-lived lock per key/shard" option).
const numShards = 16

// DefaultMaxEntries is the bound spec.md §4.5 suggests ("e.g. 10,000
// entries").
const DefaultMaxEntries = 10_000

type shard struct {
	mu    deadlock.Mutex
	cache *lru.Cache[string, time.Time]
}

// LRU is the bounded in-memory replay store spec.md §4.5 calls "the
// provided in-memory LRU variant". It evicts the oldest entry on overflow
// (via hashicorp/golang-lru's recency-based eviction, grounded on its
// appearance across the retrieval pack's go.mod manifests) and sweeps an
// expired entry opportunistically whenever Check observes one, rather than
// running a background reaper. Per-shard locking uses
// github.com/sasha-s/go-deadlock (jesseduffield-lazydocker go.mod) so a
// locking bug here surfaces as a deadlock-detector panic in development
// instead of a silent hang in production.
type LRU struct {
	shards [numShards]*shard
	clk    clock.Clock
}

var _ AtomicStore = (*LRU)(nil)

// NewLRU builds an LRU store with the given clock (use clock.Default() in
// production, clock.NewFake() in tests) and total entry bound, spread evenly
// across shards.
func NewLRU(clk clock.Clock, maxEntries int) (*LRU, error) {
	if maxEntries < numShards {
		maxEntries = numShards
	}
	l := &LRU{clk: clk}
	perShard := maxEntries / numShards
	for i := range l.shards {
		c, err := lru.New[string, time.Time](perShard)
		if err != nil {
			return nil, err
		}
		l.shards[i] = &shard{cache: c}
	}
	return l, nil
}

func (l *LRU) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%numShards]
}

// Check reports whether key is present and unexpired, sweeping it out if
// it has expired.
func (l *LRU) Check(_ context.Context, key string) (bool, error) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return l.checkLocked(s, key), nil
}

func (l *LRU) checkLocked(s *shard, key string) bool {
	exp, ok := s.cache.Get(key)
	if !ok {
		return false
	}
	if !l.clk.Now().Before(exp) {
		s.cache.Remove(key)
		return false
	}
	return true
}

// Store inserts key with the given ttl, evicting the least-recently-used
// entry if the shard is already at capacity.
func (l *LRU) Store(_ context.Context, key string, ttl time.Duration) error {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(key, l.clk.Now().Add(ttl))
	return nil
}

// CheckAndStore performs both operations under the shard's single lock, so
// two concurrent verifications for the same (addr, nonce) can never both
// observe an absent key.
func (l *LRU) CheckAndStore(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.checkLocked(s, key) {
		return true, nil
	}
	s.cache.Add(key, l.clk.Now().Add(ttl))
	return false, nil
}

// Len returns the total number of entries currently cached, for tests and
// metrics.
func (l *LRU) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += s.cache.Len()
		s.mu.Unlock()
	}
	return n
}
