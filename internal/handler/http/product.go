package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/farmmarket/internal/service"
	"github.com/utafrali/farmmarket/pkg/httputil"
)

// ProductHandler serves the read-only catalog.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, logger: logger}
}

// GetProduct handles GET /api/v1/products/{productId}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	product, err := h.service.Get(r.Context(), productID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// ListFarmerProducts handles GET /api/v1/farmers/{farmerId}/products
func (h *ProductHandler) ListFarmerProducts(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := httputil.ParseUUID(w, chi.URLParam(r, "farmerId"))
	if !ok {
		return
	}

	products, err := h.service.ListByFarmer(r.Context(), farmerID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, products)
}
