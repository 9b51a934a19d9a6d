package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/arklim/enterprise-authz/internal/core/port"
)

// DecisionCacheGuard layers an invalidation epoch over a decision cache.
// Without it, a decide call racing an administrative mutation can write its
// pre-mutation result back after the mutation's invalidation ran, serving a
// revoked grant from cache for a full TTL. Every Clear bumps the epoch under
// the write lock; PutIfCurrent re-checks the epoch under the read lock and
// drops the write when an invalidation landed in between.
type DecisionCacheGuard struct {
	mu    sync.RWMutex
	epoch uint64
	inner port.DecisionCache
}

// NewDecisionCacheGuard wraps a decision cache. All writers and invalidators
// must share the same guard instance for the epoch to mean anything.
func NewDecisionCacheGuard(inner port.DecisionCache) *DecisionCacheGuard {
	return &DecisionCacheGuard{inner: inner}
}

// Epoch returns the current invalidation epoch. Capture it before evaluating
// and pass it to PutIfCurrent.
func (g *DecisionCacheGuard) Epoch() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.epoch
}

// PutIfCurrent stores the decision unless an invalidation ran since epoch was
// observed. A dropped write is not an error; the next lookup re-evaluates.
func (g *DecisionCacheGuard) PutIfCurrent(ctx context.Context, key string, value bool, ttl time.Duration, epoch uint64) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.epoch != epoch {
		return nil
	}
	return g.inner.Put(ctx, key, value, ttl)
}

func (g *DecisionCacheGuard) Get(ctx context.Context, key string) (bool, bool, error) {
	return g.inner.Get(ctx, key)
}

func (g *DecisionCacheGuard) Put(ctx context.Context, key string, value bool, ttl time.Duration) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inner.Put(ctx, key, value, ttl)
}

func (g *DecisionCacheGuard) ClearForPrincipal(ctx context.Context, principalID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch++
	return g.inner.ClearForPrincipal(ctx, principalID)
}

func (g *DecisionCacheGuard) ClearForResource(ctx context.Context, resourceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch++
	return g.inner.ClearForResource(ctx, resourceID)
}

func (g *DecisionCacheGuard) ClearAll(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch++
	return g.inner.ClearAll(ctx)
}

var _ port.DecisionCache = (*DecisionCacheGuard)(nil)
