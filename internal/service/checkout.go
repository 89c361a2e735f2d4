package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/internal/event"
	"github.com/utafrali/farmmarket/internal/messaging"
	"github.com/utafrali/farmmarket/internal/repository"
	apperrors "github.com/utafrali/farmmarket/pkg/errors"
)

// compensationTimeout bounds the rollback of a half-written order. The
// rollback runs even when the request context is already canceled.
const compensationTimeout = 5 * time.Second

// CheckoutInput holds the delivery details entered at checkout.
type CheckoutInput struct {
	DeliveryAddress string
	ContactPhone    string
	Notes           string
}

// CheckoutResult is what a successful checkout returns.
type CheckoutResult struct {
	Order      *domain.Order     `json:"order"`
	Summary    string            `json:"summary"`
	MessageURI string            `json:"message_uri"`
	Steps      []domain.SagaStep `json:"steps"`
}

// MessageDispatcher hands an order message off without waiting for it.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, msg messaging.Message)
}

// CheckoutService turns a cart into an order.
type CheckoutService struct {
	carts      *CartService
	orders     repository.OrderRepository
	producer   *event.Producer
	links      *messaging.LinkBuilder
	dispatcher MessageDispatcher
	currency   string
	logger     *slog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	carts *CartService,
	orders repository.OrderRepository,
	producer *event.Producer,
	links *messaging.LinkBuilder,
	dispatcher MessageDispatcher,
	currency string,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		carts:      carts,
		orders:     orders,
		producer:   producer,
		links:      links,
		dispatcher: dispatcher,
		currency:   currency,
		logger:     logger,
	}
}

// Checkout places an order for the caller's cart.
//
// The order row and its items are written as separate steps. When the items
// cannot be written the order row is deleted again and the cart is kept.
// After success the cart is cleared and the order summary is handed off in
// the background.
func (s *CheckoutService) Checkout(ctx context.Context, id domain.Identity, input CheckoutInput) (*CheckoutResult, error) {
	if !id.IsAuthenticated() {
		checkoutTotal.WithLabelValues(outcomeRejected).Inc()
		return nil, apperrors.MustAuthenticate("check out")
	}

	unlock := s.carts.locks.Lock(id.StorageKey())
	defer unlock()

	cart, err := s.carts.Load(ctx, id)
	if err != nil {
		checkoutTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, err
	}
	if cart.IsEmpty() {
		checkoutTotal.WithLabelValues(outcomeRejected).Inc()
		return nil, apperrors.InvalidInput("cart is empty")
	}

	order := domain.NewOrderFromCart(id.UserID, cart)
	order.DeliveryAddress = input.DeliveryAddress
	order.ContactPhone = input.ContactPhone
	order.Notes = input.Notes

	saga := domain.NewCheckoutSaga()

	// Step 1: order row.
	createStep := saga.Step(domain.SagaStepCreateOrder)
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		createStep.Fail(err.Error())
		checkoutTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, fmt.Errorf("create order: %w", err)
	}
	createStep.Complete()

	// Step 2: order items, compensated by deleting the order row.
	itemsStep := saga.Step(domain.SagaStepInsertOrderItems)
	if err := s.orders.InsertItems(ctx, order.Items); err != nil {
		itemsStep.Fail(err.Error())
		return nil, s.compensateOrder(ctx, order, createStep, fmt.Errorf("insert order items: %w", err))
	}
	itemsStep.Complete()

	// Step 3: empty the cart. The order already exists, so a failure here
	// is logged rather than returned.
	clearStep := saga.Step(domain.SagaStepClearCart)
	if err := s.carts.store.Remove(ctx, id.StorageKey()); err != nil {
		clearStep.Fail(err.Error())
		s.logger.ErrorContext(ctx, "failed to clear cart after checkout",
			slog.String("order_id", order.ID),
			slog.String("cart_key", id.StorageKey()),
			slog.String("error", err.Error()),
		)
	} else {
		clearStep.Complete()
		if err := s.producer.PublishCartCleared(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
				slog.String("cart_key", id.StorageKey()),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.producer.PublishOrderPlaced(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.placed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	summary := messaging.FormatSummary(order, s.currency)
	uri := s.links.Build(summary)
	s.dispatcher.Dispatch(ctx, messaging.Message{
		OrderID: order.ID,
		UserID:  order.UserID,
		Summary: summary,
		URI:     uri,
	})

	checkoutTotal.WithLabelValues(outcomePlaced).Inc()
	checkoutOrderValue.Observe(float64(order.SubtotalAmount))

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.Int("lines", len(order.Items)),
		slog.Int64("subtotal_amount", order.SubtotalAmount),
	)

	return &CheckoutResult{
		Order:      order,
		Summary:    summary,
		MessageURI: uri,
		Steps:      saga.Steps,
	}, nil
}

// compensateOrder deletes the order row after a failed item insert and
// returns cause, joined with the rollback error if the delete fails too.
func (s *CheckoutService) compensateOrder(ctx context.Context, order *domain.Order, createStep *domain.SagaStep, cause error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.orders.Delete(cctx, order.ID); err != nil {
		checkoutTotal.WithLabelValues(outcomeCompensationFailed).Inc()
		s.logger.ErrorContext(ctx, "failed to roll back order after item insert failure",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return errors.Join(cause, fmt.Errorf("roll back order %s: %w", order.ID, err))
	}

	createStep.Compensate()
	checkoutTotal.WithLabelValues(outcomeCompensated).Inc()
	s.logger.WarnContext(ctx, "order rolled back after item insert failure",
		slog.String("order_id", order.ID),
		slog.String("error", cause.Error()),
	)
	return cause
}
