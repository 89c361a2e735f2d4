package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/internal/event"
	"github.com/utafrali/farmmarket/internal/repository"
	apperrors "github.com/utafrali/farmmarket/pkg/errors"
	"github.com/utafrali/farmmarket/pkg/pagination"
)

// OrderService implements order reads and status management.
type OrderService struct {
	repo     repository.OrderRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(repo repository.OrderRepository, producer *event.Producer, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

// ListMine returns one page of the caller's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, id domain.Identity, page pagination.Params) (pagination.Result[domain.Order], error) {
	if !id.IsAuthenticated() {
		return pagination.Result[domain.Order]{}, apperrors.MustAuthenticate("view your orders")
	}

	orders, total, err := s.repo.ListByUser(ctx, id.UserID, page)
	if err != nil {
		return pagination.Result[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return pagination.NewResult(orders, total, page), nil
}

// Get returns an order the caller may see. Orders that exist but are not
// visible to the caller are reported as not found.
func (s *OrderService) Get(ctx context.Context, id domain.Identity, orderID string) (*domain.Order, error) {
	if !id.IsAuthenticated() {
		return nil, apperrors.MustAuthenticate("view orders")
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if !order.VisibleTo(id) {
		return nil, apperrors.NotFound("order", orderID)
	}
	return order, nil
}

// UpdateStatus moves an order to newStatus. Farmers may only update orders
// that contain one of their products; admins may update any order.
func (s *OrderService) UpdateStatus(ctx context.Context, id domain.Identity, orderID, newStatus string) (*domain.Order, error) {
	if !id.IsAuthenticated() {
		return nil, apperrors.MustAuthenticate("update orders")
	}
	if !id.HasRole(domain.RoleFarmer, domain.RoleAdmin) {
		return nil, apperrors.Forbidden("only farmers and admins may update order status")
	}
	if !domain.IsValidStatus(newStatus) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be one of: %s", newStatus, strings.Join(domain.ValidStatuses(), ", ")))
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order for status update: %w", err)
	}
	if !order.VisibleTo(id) {
		return nil, apperrors.NotFound("order", orderID)
	}
	if !order.CanTransitionTo(newStatus) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot transition from %q to %q", order.Status, newStatus))
	}

	oldStatus := order.Status

	if err := s.repo.UpdateStatus(ctx, orderID, newStatus); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = newStatus

	if err := s.producer.PublishOrderStatusChanged(ctx, order, oldStatus, id.UserID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", orderID),
		slog.String("old_status", oldStatus),
		slog.String("new_status", newStatus),
		slog.String("changed_by", id.UserID),
	)

	return order, nil
}
