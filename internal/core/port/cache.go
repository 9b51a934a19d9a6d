package port

import (
	"context"
	"time"
)

// DecisionCache stores recent authorization decisions keyed by
// principal:action:resource. Entries never outlive their TTL; administrative
// mutations clear the affected key space before returning.
type DecisionCache interface {
	Get(ctx context.Context, key string) (value bool, found bool, err error)
	Put(ctx context.Context, key string, value bool, ttl time.Duration) error
	ClearForPrincipal(ctx context.Context, principalID string) error
	ClearForResource(ctx context.Context, resourceID string) error
	ClearAll(ctx context.Context) error
}
