package cache

import (
	"strings"
	"testing"
	"time"
)

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(t *testing.T, size int, ttl time.Duration) (*TTL[string, int], *fakeClock) {
	t.Helper()
	c, err := New[string, int](size, ttl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clock.now
	return c, clock
}

func TestGetSet(t *testing.T) {
	c, _ := newTestCache(t, 8, time.Minute)

	if _, ok := c.Get("deps:prj_api:v2.1.0"); ok {
		t.Error("Get on empty cache returned a value")
	}
	c.Set("deps:prj_api:v2.1.0", 42)
	got, ok := c.Get("deps:prj_api:v2.1.0")
	if !ok || got != 42 {
		t.Errorf("Get = %d/%v, want 42/true", got, ok)
	}
}

func TestExpiry(t *testing.T) {
	c, clock := newTestCache(t, 8, time.Minute)

	c.Set("k", 1)
	clock.advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry expired before its TTL")
	}
	clock.advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry survived past its TTL")
	}
	// Expired entries are evicted on access.
	if c.Len() != 0 {
		t.Errorf("Len = %d after expired Get, want 0", c.Len())
	}
}

func TestSetTTLOverridesDefault(t *testing.T) {
	c, clock := newTestCache(t, 8, time.Minute)

	c.SetTTL("short", 1, 10*time.Second)
	c.SetTTL("forever", 2, 0)
	clock.advance(11 * time.Second)
	if _, ok := c.Get("short"); ok {
		t.Error("per-entry TTL did not override the default")
	}
	clock.advance(240 * time.Hour)
	if _, ok := c.Get("forever"); !ok {
		t.Error("zero-TTL entry expired")
	}
}

func TestNoDefaultExpiry(t *testing.T) {
	c, clock := newTestCache(t, 8, 0)

	c.Set("k", 1)
	clock.advance(240 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry expired with expiry disabled")
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(t, 8, time.Minute)

	c.Set("k", 1)
	if !c.Invalidate("k") {
		t.Error("Invalidate on present key = false")
	}
	if c.Invalidate("k") {
		t.Error("Invalidate on absent key = true")
	}
	if _, ok := c.Get("k"); ok {
		t.Error("value survived Invalidate")
	}
}

func TestInvalidateFunc(t *testing.T) {
	c, _ := newTestCache(t, 16, time.Minute)

	c.Set("deps:prj_api:v2.1.0", 1)
	c.Set("deps:prj_api:v2.2.0", 2)
	c.Set("deps:prj_web:v1.0.0", 3)
	c.Set("tree:prj_api:v2.1.0", 4)

	removed := c.InvalidateFunc(func(k string) bool {
		return strings.Contains(k, ":prj_api:")
	})
	if removed != 3 {
		t.Errorf("InvalidateFunc removed %d, want 3", removed)
	}
	if _, ok := c.Get("deps:prj_web:v1.0.0"); !ok {
		t.Error("unmatched key was removed")
	}
}

func TestBoundedEviction(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	if c.Len() != 2 {
		t.Fatalf("Len = %d after overfill, want 2", c.Len())
	}
	// Oldest entry goes first.
	if _, ok := c.Get("a"); ok {
		t.Error("LRU kept the oldest entry past capacity")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry evicted")
	}
}

func TestPurge(t *testing.T) {
	c, _ := newTestCache(t, 8, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len = %d after Purge, want 0", c.Len())
	}
}
