package cache

import (
	"context"
	"testing"
	"time"
)

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b is now the oldest
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("k2", "v2")
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before ttl")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after ttl")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d, want 0", c.Size())
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, 0)
	c.Set("u1:5", 1)
	c.Set("u1:10", 2)
	c.Set("u10:5", 3)
	c.Set("u2:5", 4)

	if n := c.DeletePrefix("u1:"); n != 2 {
		t.Fatalf("DeletePrefix = %d, want 2", n)
	}
	if _, ok := c.Get("u10:5"); !ok {
		t.Fatal("u10 entry must survive u1 invalidation")
	}

	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("size after purge = %d", c.Size())
	}
	c.Set("x", 1)
	if v, ok := c.Get("x"); !ok || v != 1 {
		t.Fatal("cache unusable after purge")
	}
}

func TestManagerSweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	now = now.Add(time.Hour)

	m := NewManager()
	m.Register("stats", c)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx, time.Millisecond); err != nil {
		t.Fatalf("Run = %v", err)
	}
}
