package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestDecisionCache_PutGet(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewDecisionCache(client, "authz:decision")

	ctx := context.Background()
	ttl := 5 * time.Minute

	if err := cache.Put(ctx, "alice:read:doc-1", true, ttl); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := cache.Put(ctx, "alice:delete:doc-1", false, ttl); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	value, found, err := cache.Get(ctx, "alice:read:doc-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !found || !value {
		t.Fatalf("expected cached grant, got found=%t value=%t", found, value)
	}

	value, found, err = cache.Get(ctx, "alice:delete:doc-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !found || value {
		t.Fatalf("expected cached denial, got found=%t value=%t", found, value)
	}

	remaining := server.TTL("authz:decision:alice:read:doc-1")
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("expected ttl within (0, %v], got %v", ttl, remaining)
	}
}

func TestDecisionCache_GetMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewDecisionCache(client, "authz:decision")

	value, found, err := cache.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if found || value {
		t.Fatalf("expected miss, got found=%t value=%t", found, value)
	}
}

func TestDecisionCache_Expiry(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewDecisionCache(client, "authz:decision")

	ctx := context.Background()
	if err := cache.Put(ctx, "alice:read:doc-1", true, time.Minute); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	server.FastForward(2 * time.Minute)

	if _, found, _ := cache.Get(ctx, "alice:read:doc-1"); found {
		t.Fatalf("expected entry to expire")
	}
}

func TestDecisionCache_ClearForPrincipal(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewDecisionCache(client, "authz:decision")

	ctx := context.Background()
	ttl := time.Minute
	_ = cache.Put(ctx, "alice:read:doc-1", true, ttl)
	_ = cache.Put(ctx, "alice:update:doc-2", true, ttl)
	_ = cache.Put(ctx, "bob:read:doc-1", true, ttl)

	if err := cache.ClearForPrincipal(ctx, "alice"); err != nil {
		t.Fatalf("ClearForPrincipal returned error: %v", err)
	}

	if _, found, _ := cache.Get(ctx, "alice:read:doc-1"); found {
		t.Fatalf("expected alice's entries to be cleared")
	}
	if _, found, _ := cache.Get(ctx, "alice:update:doc-2"); found {
		t.Fatalf("expected alice's entries to be cleared")
	}
	if _, found, _ := cache.Get(ctx, "bob:read:doc-1"); !found {
		t.Fatalf("bob's entries must survive")
	}
}

func TestDecisionCache_ClearForResource(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewDecisionCache(client, "authz:decision")

	ctx := context.Background()
	ttl := time.Minute
	_ = cache.Put(ctx, "alice:read:doc-1", true, ttl)
	_ = cache.Put(ctx, "bob:update:doc-1", false, ttl)
	_ = cache.Put(ctx, "alice:read:doc-2", true, ttl)

	if err := cache.ClearForResource(ctx, "doc-1"); err != nil {
		t.Fatalf("ClearForResource returned error: %v", err)
	}

	if _, found, _ := cache.Get(ctx, "alice:read:doc-1"); found {
		t.Fatalf("expected doc-1 entries to be cleared")
	}
	if _, found, _ := cache.Get(ctx, "bob:update:doc-1"); found {
		t.Fatalf("expected doc-1 entries to be cleared")
	}
	if _, found, _ := cache.Get(ctx, "alice:read:doc-2"); !found {
		t.Fatalf("doc-2 entries must survive")
	}
}

func TestDecisionCache_ClearAllScopedToPrefix(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewDecisionCache(client, "authz:decision")

	ctx := context.Background()
	_ = cache.Put(ctx, "alice:read:doc-1", true, time.Minute)
	_ = cache.Put(ctx, "bob:read:doc-2", false, time.Minute)
	_ = server.Set("authz:rate-limit:admin", "3")

	if err := cache.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll returned error: %v", err)
	}

	if _, found, _ := cache.Get(ctx, "alice:read:doc-1"); found {
		t.Fatalf("expected namespace to be emptied")
	}
	if !server.Exists("authz:rate-limit:admin") {
		t.Fatalf("keys outside the namespace must survive")
	}
}
