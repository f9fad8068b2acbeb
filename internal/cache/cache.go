// Package cache implements the short-lived, in-process cache that sits in
// front of the booking repository. Entries carry an absolute expiry and are
// lazily purged: an expired entry is treated as absent on next access and
// removed at that point. There is no LRU or capacity bound; TTLs are short
// (minutes) and the key space is bounded by owner activity.
//
// The cache is safe for concurrent use from many goroutines. It never
// returns errors: a failed lookup is simply a miss.
package cache

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// entry is a stored value with its absolute expiry instant.
type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a TTL key/value store with hit/miss/set counters. Construct with
// New and inject it where needed; there is deliberately no package-level
// instance, so tests can run in parallel with isolated caches.
type Cache struct {
	entries *xsync.MapOf[string, entry]

	hits   atomic.Uint64
	misses atomic.Uint64
	sets   atomic.Uint64

	// now is a clock seam for expiry tests.
	now func() time.Time
}

// Stats is a point-in-time snapshot of cache counters. HitRate is
// hits/(hits+misses), or 0 before any traffic.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Sets    uint64  `json:"sets"`
	HitRate float64 `json:"hit_rate"`
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		entries: xsync.NewMapOf[string, entry](),
		now:     time.Now,
	}
}

// Get returns the cached value for key and whether it was present and
// unexpired. An expired entry counts as a miss and is removed.
func (c *Cache) Get(key string) (any, bool) {
	e, ok := c.entries.Load(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.entries.Delete(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key with expiry now+ttl, replacing any existing
// entry wholesale. A non-positive ttl stores an already-expired entry,
// which the next Get treats as a miss.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.entries.Store(key, entry{value: value, expiresAt: c.now().Add(ttl)})
	c.sets.Add(1)
}

// Delete removes the entry for key if present. It is idempotent and never
// errors on a missing key.
func (c *Cache) Delete(key string) {
	c.entries.Delete(key)
}

// DeletePrefix removes every entry whose key starts with prefix. It is used
// for owner-scoped invalidation after mutations (all of an owner's list,
// count, and stats entries share a prefix). Expired entries encountered
// during the sweep are removed regardless of prefix.
func (c *Cache) DeletePrefix(prefix string) {
	now := c.now()
	c.entries.Range(func(key string, e entry) bool {
		if strings.HasPrefix(key, prefix) || now.After(e.expiresAt) {
			c.entries.Delete(key)
		}
		return true
	})
}

// Len reports the number of stored entries, including any not yet lazily
// purged.
func (c *Cache) Len() int {
	return c.entries.Size()
}

// CacheStats returns a snapshot of the counters.
func (c *Cache) CacheStats() Stats {
	s := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
