package history

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/mparedes/chatstore/internal/domain"
)

const cacheShardCount = 16

// Entries this many TTLs past their fetch time are dropped by the sweep.
const cacheSweepFactor = 10

type cacheEntry struct {
	data      []domain.Message
	fetchedAt time.Time
}

type cacheShard struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// aggregateCache holds merged session views keyed by "user:session".
// Sharded so unrelated sessions do not contend on one lock. Expired
// entries are never served; entries far past expiry are swept lazily
// whenever a shard is written.
type aggregateCache struct {
	ttl    time.Duration
	now    func() time.Time
	shards [cacheShardCount]*cacheShard
}

func newAggregateCache(ttl time.Duration, now func() time.Time) *aggregateCache {
	c := &aggregateCache{ttl: ttl, now: now}
	for i := range c.shards {
		c.shards[i] = &cacheShard{entries: make(map[string]cacheEntry)}
	}
	return c
}

func (c *aggregateCache) shard(key string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%cacheShardCount]
}

func (c *aggregateCache) get(key string) ([]domain.Message, bool) {
	s := c.shard(key)
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.data, true
}

func (c *aggregateCache) put(key string, data []domain.Message) {
	now := c.now()
	s := c.shard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if now.Sub(e.fetchedAt) > c.ttl*cacheSweepFactor {
			delete(s.entries, k)
		}
	}
	s.entries[key] = cacheEntry{data: data, fetchedAt: now}
}

func (c *aggregateCache) invalidate(key string) {
	s := c.shard(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}
