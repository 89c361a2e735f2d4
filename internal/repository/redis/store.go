package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyValueStore implements repository.KeyValueStore using Redis strings.
// Every write refreshes the TTL, so an idle cart expires.
type KeyValueStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewKeyValueStore creates a new Redis-backed key-value store.
// A zero ttl keeps values forever.
func NewKeyValueStore(client *redis.Client, ttl time.Duration) *KeyValueStore {
	return &KeyValueStore{
		client: client,
		ttl:    ttl,
	}
}

// Get reads key from Redis.
func (s *KeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set writes key with the configured TTL.
func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *KeyValueStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection for readiness probes.
func (s *KeyValueStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
