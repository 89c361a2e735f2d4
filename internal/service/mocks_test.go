package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/internal/event"
	"github.com/utafrali/farmmarket/internal/messaging"
	"github.com/utafrali/farmmarket/internal/repository"
	pkgkafka "github.com/utafrali/farmmarket/pkg/kafka"
	"github.com/utafrali/farmmarket/pkg/pagination"
)

// --- Mock Repositories ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) InsertItems(ctx context.Context, items []domain.OrderItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *mockOrderRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID string, page pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, userID, page)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) ListByFarmer(ctx context.Context, farmerID string) ([]domain.Product, error) {
	args := m.Called(ctx, farmerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) ListByProduct(ctx context.Context, productID string) ([]domain.ReviewRecord, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Hand out a copy; the service attaches authors in place.
	rows := args.Get(0).([]domain.ReviewRecord)
	return append([]domain.ReviewRecord(nil), rows...), args.Error(1)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.ReviewRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReviewRecord), args.Error(1)
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.ReviewRecord) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

type mockProfileRepository struct {
	mock.Mock
}

func (m *mockProfileRepository) GetAuthor(ctx context.Context, userID string) (*domain.Author, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Author), args.Error(1)
}

// failingStore wraps a store and fails the configured operations.
type failingStore struct {
	repository.KeyValueStore
	getErr    error
	setErr    error
	removeErr error
}

func (s *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	return s.KeyValueStore.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.KeyValueStore.Set(ctx, key, value)
}

func (s *failingStore) Remove(ctx context.Context, key string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.KeyValueStore.Remove(ctx, key)
}

// --- Event and handoff fakes ---

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.topics = append(r.topics, topic)
	return nil
}

func (r *recordingPublisher) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []messaging.Message
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg messaging.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
}

func (d *recordingDispatcher) Messages() []messaging.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]messaging.Message(nil), d.messages...)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProducer() (*event.Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return event.NewProducer(pub, newTestLogger()), pub
}

var (
	customer = domain.Identity{UserID: "user-1", Role: domain.RoleCustomer}
	farmer   = domain.Identity{UserID: "farmer-1", Role: domain.RoleFarmer}
	admin    = domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}
)

func tomatoes() domain.Product {
	return domain.Product{ID: "prod-tomato", FarmerID: "farmer-1", Name: "Tomatoes", Unit: "kg", Price: 450, Stock: 100}
}

func eggs() domain.Product {
	return domain.Product{ID: "prod-eggs", FarmerID: "farmer-2", Name: "Eggs", Unit: "dozen", Price: 600, Stock: 40}
}
