package memory

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newFixture() (*DecisionCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewDecisionCache(clock), clock
}

func TestDecisionCachePutGet(t *testing.T) {
	cache, _ := newFixture()
	ctx := context.Background()

	if err := cache.Put(ctx, "alice:read:doc-1", true, time.Minute); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	value, found, err := cache.Get(ctx, "alice:read:doc-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !found || !value {
		t.Fatalf("expected cached true decision, got found=%t value=%t", found, value)
	}

	if _, found, _ := cache.Get(ctx, "alice:read:doc-2"); found {
		t.Fatalf("expected miss for unknown key")
	}
}

func TestDecisionCacheTTLExpiry(t *testing.T) {
	cache, clock := newFixture()
	ctx := context.Background()

	if err := cache.Put(ctx, "alice:read:doc-1", false, time.Minute); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	clock.now = clock.now.Add(59 * time.Second)
	if _, found, _ := cache.Get(ctx, "alice:read:doc-1"); !found {
		t.Fatalf("entry must survive inside its TTL")
	}

	clock.now = clock.now.Add(2 * time.Second)
	if _, found, _ := cache.Get(ctx, "alice:read:doc-1"); found {
		t.Fatalf("entry must expire past its TTL")
	}

	// The expired entry is purged, not just hidden.
	if cache.Len() != 0 {
		t.Fatalf("expected expired entry to be purged, got %d entries", cache.Len())
	}
}

func TestDecisionCacheZeroTTLNeverExpires(t *testing.T) {
	cache, clock := newFixture()
	ctx := context.Background()

	if err := cache.Put(ctx, "alice:read:doc-1", true, 0); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	clock.now = clock.now.Add(24 * time.Hour)
	if _, found, _ := cache.Get(ctx, "alice:read:doc-1"); !found {
		t.Fatalf("zero-TTL entry must not expire")
	}
}

func TestDecisionCacheClearForPrincipal(t *testing.T) {
	cache, _ := newFixture()
	ctx := context.Background()

	_ = cache.Put(ctx, "alice:read:doc-1", true, time.Minute)
	_ = cache.Put(ctx, "alice:update:doc-2", true, time.Minute)
	_ = cache.Put(ctx, "alicia:read:doc-1", true, time.Minute)
	_ = cache.Put(ctx, "bob:read:doc-1", true, time.Minute)

	if err := cache.ClearForPrincipal(ctx, "alice"); err != nil {
		t.Fatalf("ClearForPrincipal returned error: %v", err)
	}

	if _, found, _ := cache.Get(ctx, "alice:read:doc-1"); found {
		t.Fatalf("expected alice's entries to be cleared")
	}
	if _, found, _ := cache.Get(ctx, "alice:update:doc-2"); found {
		t.Fatalf("expected alice's entries to be cleared")
	}
	// Prefix matching must not clip other principals sharing a prefix.
	if _, found, _ := cache.Get(ctx, "alicia:read:doc-1"); !found {
		t.Fatalf("alicia's entries must survive")
	}
	if _, found, _ := cache.Get(ctx, "bob:read:doc-1"); !found {
		t.Fatalf("bob's entries must survive")
	}
}

func TestDecisionCacheClearForResource(t *testing.T) {
	cache, _ := newFixture()
	ctx := context.Background()

	_ = cache.Put(ctx, "alice:read:doc-1", true, time.Minute)
	_ = cache.Put(ctx, "bob:update:doc-1", false, time.Minute)
	_ = cache.Put(ctx, "alice:read:doc-10", true, time.Minute)

	if err := cache.ClearForResource(ctx, "doc-1"); err != nil {
		t.Fatalf("ClearForResource returned error: %v", err)
	}

	if _, found, _ := cache.Get(ctx, "alice:read:doc-1"); found {
		t.Fatalf("expected doc-1 entries to be cleared")
	}
	if _, found, _ := cache.Get(ctx, "bob:update:doc-1"); found {
		t.Fatalf("expected doc-1 entries to be cleared")
	}
	// Suffix matching must not clip resources sharing a prefix.
	if _, found, _ := cache.Get(ctx, "alice:read:doc-10"); !found {
		t.Fatalf("doc-10 entries must survive")
	}
}

func TestDecisionCacheClearAll(t *testing.T) {
	cache, _ := newFixture()
	ctx := context.Background()

	_ = cache.Put(ctx, "alice:read:doc-1", true, time.Minute)
	_ = cache.Put(ctx, "bob:read:doc-2", false, time.Minute)

	if err := cache.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll returned error: %v", err)
	}

	if cache.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", cache.Len())
	}
}
