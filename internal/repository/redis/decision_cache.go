package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arklim/enterprise-authz/internal/core/port"
)

// DefaultDecisionKeyPrefix namespaces decision cache keys in Redis.
const DefaultDecisionKeyPrefix = "authz:decision"

const scanBatchSize = 256

// DecisionCache persists authorization decisions in Redis with a native TTL.
// Targeted invalidation scans the keyspace by pattern: principal keys share a
// prefix, resource keys a suffix, inside the configured namespace.
type DecisionCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewDecisionCache constructs a Redis-backed decision cache.
func NewDecisionCache(client *redis.Client, keyPrefix string) *DecisionCache {
	if keyPrefix == "" {
		keyPrefix = DefaultDecisionKeyPrefix
	}
	return &DecisionCache{client: client, keyPrefix: keyPrefix}
}

// Get retrieves a cached decision. A missing key is not an error.
func (c *DecisionCache) Get(ctx context.Context, key string) (bool, bool, error) {
	value, err := c.client.Get(ctx, c.namespaced(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, false, nil
		}
		return false, false, fmt.Errorf("redis get: %w", err)
	}

	return value == "1", true, nil
}

// Put stores a decision with the given TTL.
func (c *DecisionCache) Put(ctx context.Context, key string, value bool, ttl time.Duration) error {
	stored := "0"
	if value {
		stored = "1"
	}

	if err := c.client.Set(ctx, c.namespaced(key), stored, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// ClearForPrincipal removes every cached decision for the principal.
func (c *DecisionCache) ClearForPrincipal(ctx context.Context, principalID string) error {
	return c.deleteByPattern(ctx, fmt.Sprintf("%s:%s:*", c.keyPrefix, principalID))
}

// ClearForResource removes every cached decision touching the resource.
func (c *DecisionCache) ClearForResource(ctx context.Context, resourceID string) error {
	return c.deleteByPattern(ctx, fmt.Sprintf("%s:*:%s", c.keyPrefix, resourceID))
}

// ClearAll removes every cached decision in the namespace.
func (c *DecisionCache) ClearAll(ctx context.Context) error {
	return c.deleteByPattern(ctx, c.keyPrefix+":*")
}

func (c *DecisionCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()

	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}

	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}

	return nil
}

func (c *DecisionCache) namespaced(key string) string {
	return c.keyPrefix + ":" + key
}

var _ port.DecisionCache = (*DecisionCache)(nil)
