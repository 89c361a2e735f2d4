package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/internal/event"
	"github.com/utafrali/farmmarket/internal/repository"
	"github.com/utafrali/farmmarket/internal/repository/memory"
	apperrors "github.com/utafrali/farmmarket/pkg/errors"
)

func newTestCartService(store repository.KeyValueStore) (*CartService, *mockProductRepository, *recordingPublisher) {
	products := new(mockProductRepository)
	producer, pub := newTestProducer()
	return NewCartService(store, products, producer, newTestLogger()), products, pub
}

func TestCartService_LoadMissingIsEmpty(t *testing.T) {
	svc, _, _ := newTestCartService(memory.NewKeyValueStore())

	cart, err := svc.Load(context.Background(), customer)
	require.NoError(t, err)
	assert.Equal(t, "cart:user-1", cart.Key)
	assert.Empty(t, cart.Items)
}

func TestCartService_LoadUnreadableValueIsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, raw := range map[string]string{
		"not json":  "{{{",
		"object":    `{"items":[]}`,
		"string":    `"hello"`,
		"bad field": `[{"product_id":"p1","quantity":"two"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			store := memory.NewKeyValueStore()
			require.NoError(t, store.Set(ctx, customer.StorageKey(), raw))
			svc, _, _ := newTestCartService(store)

			cart, err := svc.Load(ctx, customer)
			require.NoError(t, err)
			assert.Empty(t, cart.Items)
		})
	}
}

func TestCartService_LoadStoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	svc, _, _ := newTestCartService(&failingStore{KeyValueStore: memory.NewKeyValueStore(), getErr: boom})

	_, err := svc.Load(context.Background(), customer)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestCartService_AddItemMergesByProduct(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKeyValueStore()
	svc, _, pub := newTestCartService(store)

	_, err := svc.AddItem(ctx, customer, tomatoes(), 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, customer, eggs(), 1)
	require.NoError(t, err)

	updated := tomatoes()
	updated.Price = 500
	cart, err := svc.AddItem(ctx, customer, updated, 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	assert.Equal(t, "prod-tomato", cart.Items[0].ProductID)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, int64(500), cart.Items[0].Price)
	assert.Equal(t, "prod-eggs", cart.Items[1].ProductID)

	reloaded, err := svc.Load(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, cart.Items, reloaded.Items)

	assert.Equal(t, []string{event.TopicCartUpdated, event.TopicCartUpdated, event.TopicCartUpdated}, pub.Topics())
}

func TestCartService_AddItemRejectsGuest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKeyValueStore()
	svc, _, pub := newTestCartService(store)

	_, err := svc.AddItem(ctx, domain.Guest, tomatoes(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, ok, err := store.Get(ctx, domain.Guest.StorageKey())
	require.NoError(t, err)
	assert.False(t, ok, "guest cart must not be written")
	assert.Empty(t, pub.Topics())
}

func TestCartService_AddItemNonPositiveQuantityIsNoop(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKeyValueStore()
	svc, _, pub := newTestCartService(store)

	_, err := svc.AddItem(ctx, customer, tomatoes(), 1)
	require.NoError(t, err)

	for _, qty := range []int{0, -4} {
		cart, err := svc.AddItem(ctx, customer, tomatoes(), qty)
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, 1, cart.Items[0].Quantity)
	}
	assert.Len(t, pub.Topics(), 1)
}

func TestCartService_AddItemLimits(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestCartService(memory.NewKeyValueStore())

	_, err := svc.AddItem(ctx, customer, tomatoes(), MaxQuantityPerItem)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, customer, tomatoes(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	cart, err := svc.Load(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, MaxQuantityPerItem, cart.Items[0].Quantity)
}

func TestCartService_AddItemByID(t *testing.T) {
	ctx := context.Background()
	svc, products, _ := newTestCartService(memory.NewKeyValueStore())

	p := tomatoes()
	products.On("GetByID", ctx, p.ID).Return(&p, nil)
	products.On("GetByID", ctx, "missing").Return(nil, apperrors.NotFound("product", "missing"))

	cart, err := svc.AddItemByID(ctx, customer, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Tomatoes", cart.Items[0].Name)
	assert.Equal(t, "farmer-1", cart.Items[0].FarmerID)

	_, err = svc.AddItemByID(ctx, customer, "missing", 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	products.AssertExpectations(t)
}

func TestCartService_AddItemByIDGuestSkipsLookup(t *testing.T) {
	svc, products, _ := newTestCartService(memory.NewKeyValueStore())

	_, err := svc.AddItemByID(context.Background(), domain.Guest, "prod-tomato", 1)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestCartService_UpdateQuantityAndRemove(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestCartService(memory.NewKeyValueStore())

	_, err := svc.AddItem(ctx, customer, tomatoes(), 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, customer, eggs(), 1)
	require.NoError(t, err)

	cart, err := svc.UpdateQuantity(ctx, customer, "prod-eggs", 6)
	require.NoError(t, err)
	assert.Equal(t, 6, cart.Items[1].Quantity)

	cart, err = svc.UpdateQuantity(ctx, customer, "prod-tomato", 0)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "prod-eggs", cart.Items[0].ProductID)

	cart, err = svc.RemoveItem(ctx, customer, "not-in-cart")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	cart, err = svc.RemoveItem(ctx, customer, "prod-eggs")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = svc.UpdateQuantity(ctx, customer, "prod-eggs", MaxQuantityPerItem+1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCartService_Clear(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKeyValueStore()
	svc, _, pub := newTestCartService(store)

	_, err := svc.AddItem(ctx, customer, tomatoes(), 2)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, customer))

	_, ok, err := store.Get(ctx, customer.StorageKey())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{event.TopicCartUpdated, event.TopicCartCleared}, pub.Topics())
}

func TestCartService_SaveFailureReturnsError(t *testing.T) {
	boom := errors.New("write timeout")
	svc, _, pub := newTestCartService(&failingStore{KeyValueStore: memory.NewKeyValueStore(), setErr: boom})

	_, err := svc.AddItem(context.Background(), customer, tomatoes(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, pub.Topics())
}

func TestCartService_PublishFailureIsNotReturned(t *testing.T) {
	products := new(mockProductRepository)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewCartService(memory.NewKeyValueStore(), products, event.NewProducer(pub, newTestLogger()), newTestLogger())

	cart, err := svc.AddItem(context.Background(), customer, tomatoes(), 1)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestCartService_ConcurrentAddsAreSerialized(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestCartService(memory.NewKeyValueStore())

	const workers = 20
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, customer, tomatoes(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := svc.Load(ctx, customer)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, workers, cart.Items[0].Quantity)
	assert.Zero(t, svc.locks.size())
}
