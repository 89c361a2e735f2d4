package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/farmmarket/internal/service"
	"github.com/utafrali/farmmarket/pkg/httputil"
	"github.com/utafrali/farmmarket/pkg/validator"
)

// CheckoutHandler handles POST /api/v1/checkout.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: svc, logger: logger}
}

// CheckoutRequest carries the delivery details for an order.
type CheckoutRequest struct {
	DeliveryAddress string `json:"delivery_address" validate:"required,max=500"`
	ContactPhone    string `json:"contact_phone" validate:"required,max=32"`
	Notes           string `json:"notes" validate:"max=1000"`
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	result, err := h.service.Checkout(r.Context(), identityFrom(r), service.CheckoutInput{
		DeliveryAddress: req.DeliveryAddress,
		ContactPhone:    req.ContactPhone,
		Notes:           req.Notes,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, result)
}
