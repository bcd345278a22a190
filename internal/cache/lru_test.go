package cache

import (
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v, want 1, true", v, ok)
	}

	// "a" was just used, so adding "c" evicts "b"
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) after eviction = %v, %v, want 1, true", v, ok)
	}
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)

	c.Set("k", "v")
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
	if n := c.Size(); n != 0 {
		t.Errorf("Size() after expiry = %d, want 0", n)
	}
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	c.Set("u1:2024-01", 1)
	c.Set("u1:2024-02", 2)
	c.Set("u2:2024-01", 3)

	if n := c.DeletePrefix("u1:"); n != 2 {
		t.Errorf("DeletePrefix(u1:) = %d, want 2", n)
	}
	if _, ok := c.Get("u1:2024-01"); ok {
		t.Error("expected u1:2024-01 to be removed")
	}
	if v, ok := c.Get("u2:2024-01"); !ok || v != 3 {
		t.Errorf("Get(u2:2024-01) = %v, %v, want 3, true", v, ok)
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.ttl = time.Minute
	c.Set("c", 3)

	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if n := c.Size(); n != 1 {
		t.Errorf("Size() = %d, want 1", n)
	}
}
