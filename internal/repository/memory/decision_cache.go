package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/arklim/enterprise-authz/internal/core/port"
)

type cacheEntry struct {
	value    bool
	storedAt time.Time
	ttl      time.Duration
}

func (e cacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.storedAt) > e.ttl
}

// DecisionCache is an in-process TTL cache for authorization decisions.
// Expired entries are treated as not-found and purged lazily on lookup. Used
// when no Redis backend is configured, and in tests.
type DecisionCache struct {
	clock port.Clock

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewDecisionCache constructs an empty cache.
func NewDecisionCache(clock port.Clock) *DecisionCache {
	if clock == nil {
		clock = port.SystemClock{}
	}
	return &DecisionCache{
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached decision, purging the entry when its TTL elapsed.
func (c *DecisionCache) Get(_ context.Context, key string) (bool, bool, error) {
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return false, false, nil
	}

	if entry.expired(now) {
		c.mu.Lock()
		if stored, ok := c.entries[key]; ok && stored.expired(now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return false, false, nil
	}

	return entry.value, true, nil
}

// Put stores or overwrites a decision.
func (c *DecisionCache) Put(_ context.Context, key string, value bool, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, storedAt: c.clock.Now(), ttl: ttl}
	c.mu.Unlock()
	return nil
}

// ClearForPrincipal removes every entry whose key starts with the principal.
func (c *DecisionCache) ClearForPrincipal(_ context.Context, principalID string) error {
	prefix := principalID + ":"

	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return nil
}

// ClearForResource removes every entry whose key ends with the resource.
func (c *DecisionCache) ClearForResource(_ context.Context, resourceID string) error {
	suffix := ":" + resourceID

	c.mu.Lock()
	for key := range c.entries {
		if strings.HasSuffix(key, suffix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return nil
}

// ClearAll removes every entry.
func (c *DecisionCache) ClearAll(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	return nil
}

// Len reports the live entry count, expired entries included until purged.
func (c *DecisionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ port.DecisionCache = (*DecisionCache)(nil)
