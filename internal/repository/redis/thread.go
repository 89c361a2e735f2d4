package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/farmmarket/internal/domain"
)

const threadKeyPrefix = "reviews:thread:"

// ThreadCache implements repository.ThreadCache, one JSON document per product.
type ThreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewThreadCache creates a new Redis-backed thread cache.
func NewThreadCache(client *redis.Client, ttl time.Duration) *ThreadCache {
	return &ThreadCache{client: client, ttl: ttl}
}

// Get returns the cached tree for productID.
func (c *ThreadCache) Get(ctx context.Context, productID string) ([]*domain.ReviewNode, bool, error) {
	data, err := c.client.Get(ctx, threadKeyPrefix+productID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get thread: %w", err)
	}

	var tree []*domain.ReviewNode
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, false, fmt.Errorf("unmarshal thread: %w", err)
	}
	return tree, true, nil
}

// Replace overwrites the cached tree.
func (c *ThreadCache) Replace(ctx context.Context, productID string, tree []*domain.ReviewNode) error {
	if tree == nil {
		tree = []*domain.ReviewNode{}
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	if err := c.client.Set(ctx, threadKeyPrefix+productID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set thread: %w", err)
	}
	return nil
}

// Invalidate removes the cached tree.
func (c *ThreadCache) Invalidate(ctx context.Context, productID string) error {
	if err := c.client.Del(ctx, threadKeyPrefix+productID).Err(); err != nil {
		return fmt.Errorf("redis del thread: %w", err)
	}
	return nil
}
