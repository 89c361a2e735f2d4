package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/farmmarket/internal/domain"
	pkgkafka "github.com/utafrali/farmmarket/pkg/kafka"
	"github.com/utafrali/farmmarket/pkg/logger"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, published{topic: topic, event: event})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishCartUpdated(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(pub, testLogger())
	id := domain.Identity{UserID: "u1"}
	cart := domain.NewCart(id.StorageKey(), nil).
		WithItem(domain.Product{ID: "p1", Price: 250}, 4)

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	require.NoError(t, p.PublishCartUpdated(ctx, id, cart))

	require.Len(t, pub.events, 1)
	got := pub.events[0]
	assert.Equal(t, "farmmarket.cart.updated", got.topic)
	assert.Equal(t, "cart:u1", got.event.AggregateID)
	assert.Equal(t, AggregateTypeCart, got.event.AggregateType)
	assert.Equal(t, Source, got.event.Source)
	assert.Equal(t, "corr-1", got.event.CorrelationID)

	var data CartUpdatedData
	require.NoError(t, got.event.UnmarshalData(&data))
	assert.Equal(t, 4, data.ItemCount)
	assert.Equal(t, int64(1000), data.Subtotal)
	assert.Equal(t, "u1", data.UserID)
}

func TestPublishOrderPlaced_DedupesFarmers(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(pub, testLogger())
	order := &domain.Order{ID: "o1", UserID: "u1", Items: []domain.OrderItem{
		{FarmerID: "f1"}, {FarmerID: "f2"}, {FarmerID: "f1"},
	}}

	require.NoError(t, p.PublishOrderPlaced(context.Background(), order))

	var data OrderPlacedData
	require.NoError(t, pub.events[0].event.UnmarshalData(&data))
	assert.Equal(t, []string{"f1", "f2"}, data.FarmerIDs)
	assert.Equal(t, TopicOrderPlaced, pub.events[0].topic)
}

func TestPublishOrderStatusChanged(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(pub, testLogger())
	order := &domain.Order{ID: "o1", UserID: "u1", Status: domain.OrderStatusShipped}

	require.NoError(t, p.PublishOrderStatusChanged(context.Background(), order, domain.OrderStatusProcessing, "farmer-1"))

	var data OrderStatusChangedData
	require.NoError(t, pub.events[0].event.UnmarshalData(&data))
	assert.Equal(t, OrderStatusChangedData{
		OrderID: "o1", UserID: "u1",
		OldStatus: domain.OrderStatusProcessing, NewStatus: domain.OrderStatusShipped,
		ChangedBy: "farmer-1",
	}, data)
}

func TestPublishReviewCreatedAndCartCleared(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(pub, testLogger())

	require.NoError(t, p.PublishReviewCreated(context.Background(), &domain.ReviewRecord{ID: "r1", ProductID: "p1", Rating: 4}))
	require.NoError(t, p.PublishCartCleared(context.Background(), domain.Identity{UserID: "u9"}))

	require.Len(t, pub.events, 2)
	assert.Equal(t, TopicReviewCreated, pub.events[0].topic)
	assert.Equal(t, "p1", pub.events[0].event.AggregateID)
	assert.Equal(t, TopicCartCleared, pub.events[1].topic)
	assert.Equal(t, "cart:u9", pub.events[1].event.AggregateID)
}

func TestPublish_ErrorWrapped(t *testing.T) {
	p := NewProducer(&recordingPublisher{err: errors.New("broker down")}, testLogger())

	err := p.PublishCartCleared(context.Background(), domain.Identity{UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish farmmarket.cart.cleared event")
}

func TestPublish_DisabledIsNoop(t *testing.T) {
	p := NewProducer(nil, testLogger())
	assert.NoError(t, p.PublishOrderPlaced(context.Background(), &domain.Order{ID: "o1"}))
}
