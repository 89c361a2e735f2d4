// Package memory provides in-process stores for local development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/utafrali/farmmarket/internal/domain"
)

// KeyValueStore implements repository.KeyValueStore over a map.
type KeyValueStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewKeyValueStore creates an empty store.
func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{values: make(map[string]string)}
}

// Get returns the value under key.
func (s *KeyValueStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *KeyValueStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Remove deletes key.
func (s *KeyValueStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// ThreadCache implements repository.ThreadCache over a map.
// Trees are stored as given; callers never mutate a tree after building it.
type ThreadCache struct {
	mu      sync.RWMutex
	threads map[string][]*domain.ReviewNode
}

// NewThreadCache creates an empty cache.
func NewThreadCache() *ThreadCache {
	return &ThreadCache{threads: make(map[string][]*domain.ReviewNode)}
}

func (c *ThreadCache) Get(_ context.Context, productID string) ([]*domain.ReviewNode, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tree, ok := c.threads[productID]
	return tree, ok, nil
}

func (c *ThreadCache) Replace(_ context.Context, productID string, tree []*domain.ReviewNode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tree == nil {
		tree = []*domain.ReviewNode{}
	}
	c.threads[productID] = tree
	return nil
}

func (c *ThreadCache) Invalidate(_ context.Context, productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.threads, productID)
	return nil
}
