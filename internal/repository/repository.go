package repository

import (
	"context"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/pkg/pagination"
)

// KeyValueStore is the string key-value contract the cart is persisted through.
type KeyValueStore interface {
	// Get returns the value stored under key. The boolean is false when the
	// key does not exist; that is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// ThreadCache holds the built review tree of a product.
type ThreadCache interface {
	// Get returns the cached tree, and false on a cache miss.
	Get(ctx context.Context, productID string) ([]*domain.ReviewNode, bool, error)

	// Replace stores tree as the whole cached thread for the product.
	Replace(ctx context.Context, productID string, tree []*domain.ReviewNode) error

	// Invalidate drops the cached thread.
	Invalidate(ctx context.Context, productID string) error
}

// ReviewRepository defines persistence operations for reviews and replies.
type ReviewRepository interface {
	// ListByProduct returns the flat review rows of a product, author not attached.
	ListByProduct(ctx context.Context, productID string) ([]domain.ReviewRecord, error)

	// GetByID retrieves a single review by its ID.
	GetByID(ctx context.Context, id string) (*domain.ReviewRecord, error)

	// Create inserts a new review record.
	Create(ctx context.Context, review *domain.ReviewRecord) error
}

// ProfileRepository resolves author snapshots.
type ProfileRepository interface {
	GetAuthor(ctx context.Context, userID string) (*domain.Author, error)
}

// OrderRepository defines the order operations checkout and order
// management are built on. Order rows and item rows are written separately
// so a failed item insert can be compensated by deleting the order.
type OrderRepository interface {
	// CreateOrder inserts the order row only.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// InsertItems inserts the line items of an order.
	InsertItems(ctx context.Context, items []domain.OrderItem) error

	// Delete removes an order and any items already attached to it.
	Delete(ctx context.Context, id string) error

	// GetByID retrieves an order with its items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// ListByUser returns one page of a user's orders, newest first, and the total count.
	ListByUser(ctx context.Context, userID string, page pagination.Params) ([]domain.Order, int, error)

	// UpdateStatus sets the status of an order.
	UpdateStatus(ctx context.Context, id, status string) error
}

// ProductRepository is the read-only catalog lookup.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	ListByFarmer(ctx context.Context, farmerID string) ([]domain.Product, error)
}
