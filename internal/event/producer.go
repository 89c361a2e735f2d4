package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/farmmarket/internal/domain"
	pkgkafka "github.com/utafrali/farmmarket/pkg/kafka"
	"github.com/utafrali/farmmarket/pkg/logger"
)

// Kafka topics for marketplace domain events.
var (
	TopicCartUpdated        = pkgkafka.Topic("cart", "updated")
	TopicCartCleared        = pkgkafka.Topic("cart", "cleared")
	TopicOrderPlaced        = pkgkafka.Topic("order", "placed")
	TopicOrderStatusChanged = pkgkafka.Topic("order", "status_changed")
	TopicReviewCreated      = pkgkafka.Topic("review", "created")
)

// Aggregate type constants.
const (
	AggregateTypeCart   = "cart"
	AggregateTypeOrder  = "order"
	AggregateTypeReview = "review"
)

// Source identifies events originating from this service.
const Source = "farmmarket-api"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	CartKey   string            `json:"cart_key"`
	UserID    string            `json:"user_id"`
	Items     []domain.CartItem `json:"items"`
	ItemCount int               `json:"item_count"`
	Subtotal  int64             `json:"subtotal"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	CartKey string `json:"cart_key"`
	UserID  string `json:"user_id"`
}

// OrderPlacedData is the payload for an order.placed event.
type OrderPlacedData struct {
	OrderID        string             `json:"order_id"`
	UserID         string             `json:"user_id"`
	SubtotalAmount int64              `json:"subtotal_amount"`
	Items          []domain.OrderItem `json:"items"`
	FarmerIDs      []string           `json:"farmer_ids"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	ChangedBy string `json:"changed_by"`
}

// ReviewCreatedData is the payload for a review.created event.
type ReviewCreatedData struct {
	ReviewID  string  `json:"review_id"`
	ProductID string  `json:"product_id"`
	UserID    string  `json:"user_id"`
	ParentID  *string `json:"parent_id"`
	Rating    int     `json:"rating"`
}

// Publisher writes an event envelope to a topic. *pkgkafka.Producer
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes marketplace domain events. A Producer with a nil
// publisher drops every event, which is how events are turned off when no
// brokers are configured.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, id domain.Identity, cart domain.Cart) error {
	data := CartUpdatedData{
		CartKey:   cart.Key,
		UserID:    id.UserID,
		Items:     cart.Items,
		ItemCount: cart.ItemCount(),
		Subtotal:  cart.Subtotal(),
	}
	return p.publish(ctx, TopicCartUpdated, cart.Key, AggregateTypeCart, data)
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, id domain.Identity) error {
	data := CartClearedData{CartKey: id.StorageKey(), UserID: id.UserID}
	return p.publish(ctx, TopicCartCleared, id.StorageKey(), AggregateTypeCart, data)
}

// PublishOrderPlaced publishes an order.placed event.
func (p *Producer) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	seen := make(map[string]bool)
	farmers := make([]string, 0)
	for _, item := range order.Items {
		if !seen[item.FarmerID] {
			seen[item.FarmerID] = true
			farmers = append(farmers, item.FarmerID)
		}
	}

	data := OrderPlacedData{
		OrderID:        order.ID,
		UserID:         order.UserID,
		SubtotalAmount: order.SubtotalAmount,
		Items:          order.Items,
		FarmerIDs:      farmers,
	}
	return p.publish(ctx, TopicOrderPlaced, order.ID, AggregateTypeOrder, data)
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, oldStatus, changedBy string) error {
	data := OrderStatusChangedData{
		OrderID:   order.ID,
		UserID:    order.UserID,
		OldStatus: oldStatus,
		NewStatus: order.Status,
		ChangedBy: changedBy,
	}
	return p.publish(ctx, TopicOrderStatusChanged, order.ID, AggregateTypeOrder, data)
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.ReviewRecord) error {
	data := ReviewCreatedData{
		ReviewID:  review.ID,
		ProductID: review.ProductID,
		UserID:    review.UserID,
		ParentID:  review.ParentID,
		Rating:    review.Rating,
	}
	return p.publish(ctx, TopicReviewCreated, review.ProductID, AggregateTypeReview, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p.publisher == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		event.WithCorrelationID(cid)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "domain event published",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
