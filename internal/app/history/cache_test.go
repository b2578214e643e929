package history

import (
	"testing"
	"time"

	"github.com/mparedes/chatstore/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCacheServesFreshEntries(t *testing.T) {
	clock := newFakeClock()
	c := newAggregateCache(10*time.Second, clock.Now)

	data := []domain.Message{domain.NewTextMessage(domain.RoleUser, "hi")}
	c.put("u:s", data)

	clock.Advance(9 * time.Second)
	got, ok := c.get("u:s")
	if !ok {
		t.Fatal("expected a fresh entry")
	}
	if len(got) != 1 || got[0].Content[0].Text != "hi" {
		t.Fatalf("unexpected cached data: %v", got)
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	c := newAggregateCache(10*time.Second, clock.Now)

	c.put("u:s", nil)
	clock.Advance(10 * time.Second)

	if _, ok := c.get("u:s"); ok {
		t.Fatal("entry at TTL must not be served")
	}
}

func TestCacheInvalidate(t *testing.T) {
	clock := newFakeClock()
	c := newAggregateCache(10*time.Second, clock.Now)

	c.put("u:s", []domain.Message{domain.NewTextMessage(domain.RoleUser, "hi")})
	c.invalidate("u:s")

	if _, ok := c.get("u:s"); ok {
		t.Fatal("invalidated entry must not be served")
	}
}

func TestCacheSweepsFarExpiredEntries(t *testing.T) {
	clock := newFakeClock()
	c := newAggregateCache(10*time.Second, clock.Now)

	c.put("u:old", nil)
	clock.Advance(101 * time.Second) // past 10x TTL
	c.put("u:new", nil)              // same shard or not, sweep runs per put

	// The swept shard must no longer hold the stale key.
	s := c.shard("u:old")
	s.mu.RLock()
	_, ok := s.entries["u:old"]
	s.mu.RUnlock()

	if c.shard("u:old") == c.shard("u:new") && ok {
		t.Fatal("far-expired entry survived a sweep of its shard")
	}

	// Regardless of sharding it must not be served.
	if _, served := c.get("u:old"); served {
		t.Fatal("far-expired entry was served")
	}
}

func TestCacheKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	c := newAggregateCache(10*time.Second, clock.Now)

	c.put("u1:s", []domain.Message{domain.NewTextMessage(domain.RoleUser, "one")})
	c.put("u2:s", []domain.Message{domain.NewTextMessage(domain.RoleUser, "two")})
	c.invalidate("u1:s")

	if _, ok := c.get("u1:s"); ok {
		t.Fatal("invalidated key served")
	}
	if _, ok := c.get("u2:s"); !ok {
		t.Fatal("unrelated key lost")
	}
}
