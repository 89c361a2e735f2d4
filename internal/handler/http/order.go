package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/farmmarket/internal/service"
	"github.com/utafrali/farmmarket/pkg/httputil"
	"github.com/utafrali/farmmarket/pkg/pagination"
	"github.com/utafrali/farmmarket/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: logger}
}

// UpdateStatusRequest is the JSON request body for changing order status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListMine(r.Context(), identityFrom(r), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// GetOrder handles GET /api/v1/orders/{orderId}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), identityFrom(r), orderID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /api/v1/orders/{orderId}/status
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), identityFrom(r), orderID.String(), req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}
