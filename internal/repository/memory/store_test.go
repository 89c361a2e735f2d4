package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/internal/repository"
)

var (
	_ repository.KeyValueStore = (*KeyValueStore)(nil)
	_ repository.ThreadCache   = (*ThreadCache)(nil)
)

func TestKeyValueStore_Lifecycle(t *testing.T) {
	s := NewKeyValueStore()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v1"))
	require.NoError(t, s.Set(ctx, "k", "v2"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, s.Remove(ctx, "k"))
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestKeyValueStore_ConcurrentAccess(t *testing.T) {
	s := NewKeyValueStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			_ = s.Set(ctx, key, "v")
			_, _, _ = s.Get(ctx, key)
			_ = s.Remove(ctx, key)
		}(i)
	}
	wg.Wait()
}

func TestThreadCache_Lifecycle(t *testing.T) {
	c := NewThreadCache()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	tree := []*domain.ReviewNode{domain.NewReviewNode(domain.ReviewRecord{ID: "r1"})}
	require.NoError(t, c.Replace(ctx, "p1", tree))
	got, ok, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, tree, got)

	require.NoError(t, c.Replace(ctx, "p1", nil))
	got, ok, _ = c.Get(ctx, "p1")
	assert.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	require.NoError(t, c.Invalidate(ctx, "p1"))
	_, ok, _ = c.Get(ctx, "p1")
	assert.False(t, ok)
}
