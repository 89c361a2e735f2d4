package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/internal/event"
	"github.com/utafrali/farmmarket/internal/repository"
	apperrors "github.com/utafrali/farmmarket/pkg/errors"
)

// Cart limits.
const (
	// MaxQuantityPerItem is the largest quantity a single line may reach.
	MaxQuantityPerItem = 999
	// MaxItemsPerCart is the maximum number of distinct products in a cart.
	MaxItemsPerCart = 50
)

// CartService implements the business logic for cart operations.
// Mutations on one storage key are serialized within the process; writers
// in other processes still race, last write wins.
type CartService struct {
	store    repository.KeyValueStore
	products repository.ProductRepository
	producer *event.Producer
	logger   *slog.Logger
	locks    *keyedMutex
}

// NewCartService creates a new cart service.
func NewCartService(store repository.KeyValueStore, products repository.ProductRepository, producer *event.Producer, logger *slog.Logger) *CartService {
	return &CartService{
		store:    store,
		products: products,
		producer: producer,
		logger:   logger,
		locks:    newKeyedMutex(),
	}
}

// Load returns the cart of id. A missing or unreadable stored value yields
// an empty cart; only store I/O failures are returned.
func (s *CartService) Load(ctx context.Context, id domain.Identity) (domain.Cart, error) {
	key := id.StorageKey()
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return domain.NewCart(key, nil), nil
	}

	var items []domain.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.WarnContext(ctx, "discarding unreadable cart",
			slog.String("cart_key", key),
			slog.String("error", err.Error()),
		)
		return domain.NewCart(key, nil), nil
	}
	return domain.NewCart(key, items).Normalize(), nil
}

// AddItemByID resolves productID from the catalog and adds it.
func (s *CartService) AddItemByID(ctx context.Context, id domain.Identity, productID string, quantity int) (domain.Cart, error) {
	if !id.IsAuthenticated() {
		return domain.Cart{}, apperrors.MustAuthenticate("add items to your cart")
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get product: %w", err)
	}
	return s.AddItem(ctx, id, *product, quantity)
}

// AddItem adds quantity units of product, merging with an existing line.
// Guests are rejected before anything is read or written. A non-positive
// quantity leaves the cart untouched.
func (s *CartService) AddItem(ctx context.Context, id domain.Identity, product domain.Product, quantity int) (domain.Cart, error) {
	if !id.IsAuthenticated() {
		return domain.Cart{}, apperrors.MustAuthenticate("add items to your cart")
	}
	if quantity <= 0 {
		return s.Load(ctx, id)
	}

	cart, err := s.mutate(ctx, id, func(c domain.Cart) (domain.Cart, error) {
		existing, found := c.Find(product.ID)
		if !found && len(c.Items) >= MaxItemsPerCart {
			return c, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d products", MaxItemsPerCart))
		}
		if existing.Quantity+quantity > MaxQuantityPerItem {
			return c, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
		}
		return c.WithItem(product, quantity), nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("cart_key", cart.Key),
		slog.String("product_id", product.ID),
		slog.Int("quantity", quantity),
	)
	return cart, nil
}

// RemoveItem drops productID from the cart. Absent products are ignored.
func (s *CartService) RemoveItem(ctx context.Context, id domain.Identity, productID string) (domain.Cart, error) {
	return s.mutate(ctx, id, func(c domain.Cart) (domain.Cart, error) {
		return c.WithoutItem(productID), nil
	})
}

// UpdateQuantity sets the quantity of productID; below 1 removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, id domain.Identity, productID string, quantity int) (domain.Cart, error) {
	if quantity > MaxQuantityPerItem {
		return domain.Cart{}, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}
	return s.mutate(ctx, id, func(c domain.Cart) (domain.Cart, error) {
		return c.WithQuantity(productID, quantity), nil
	})
}

// Clear removes the stored cart entirely.
func (s *CartService) Clear(ctx context.Context, id domain.Identity) error {
	unlock := s.locks.Lock(id.StorageKey())
	defer unlock()

	if err := s.store.Remove(ctx, id.StorageKey()); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	if err := s.producer.PublishCartCleared(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("cart_key", id.StorageKey()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// mutate loads, transforms and saves the cart of id under its key lock.
// Nothing is written when fn fails.
func (s *CartService) mutate(ctx context.Context, id domain.Identity, fn func(domain.Cart) (domain.Cart, error)) (domain.Cart, error) {
	unlock := s.locks.Lock(id.StorageKey())
	defer unlock()

	current, err := s.Load(ctx, id)
	if err != nil {
		return domain.Cart{}, err
	}
	updated, err := fn(current)
	if err != nil {
		return domain.Cart{}, err
	}

	if err := s.save(ctx, updated); err != nil {
		return domain.Cart{}, err
	}

	if err := s.producer.PublishCartUpdated(ctx, id, updated); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("cart_key", updated.Key),
			slog.String("error", err.Error()),
		)
	}
	return updated, nil
}

func (s *CartService) save(ctx context.Context, cart domain.Cart) error {
	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.store.Set(ctx, cart.Key, string(data)); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
