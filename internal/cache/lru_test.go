package cache

import (
	"context"
	"testing"
	"time"

	"finanzas/internal/log"
)

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Errorf("b should have been evicted as least recently used")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
	if st := c.Stats(); st.Hits != 2 || st.Misses != 1 {
		t.Errorf("Stats() = %+v", st)
	}

	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Purge left %d entries", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](4, time.Second)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("j", "w")
	now = now.Add(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Errorf("expired entry returned")
	}

	m := NewManager(log.Discard())
	m.Register(c)
	if n := m.CleanNow(); n != 1 {
		t.Errorf("CleanNow() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after cleanup", c.Size())
	}
}

func TestLRUCacheDisabled(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Errorf("zero-size cache must not store")
	}
}

func TestManagerStop(t *testing.T) {
	m := NewManager(log.Discard())
	m.Stop()

	m = NewManager(log.Discard())
	m.StartCleanup(context.Background(), time.Millisecond)
	m.Stop()
	m.Stop()
}
