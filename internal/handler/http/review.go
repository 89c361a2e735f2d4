package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/farmmarket/internal/service"
	"github.com/utafrali/farmmarket/pkg/httputil"
	"github.com/utafrali/farmmarket/pkg/validator"
)

// ReviewHandler handles product review threads.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{service: svc, logger: logger}
}

// CreateReviewRequest is the body of a new review or reply. Rating is
// ignored for replies.
type CreateReviewRequest struct {
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
	Rating   int     `json:"rating" validate:"gte=0,lte=5"`
	Comment  string  `json:"comment" validate:"required,max=2000"`
}

// GetThread handles GET /api/v1/products/{productId}/reviews
func (h *ReviewHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	tree, err := h.service.GetThread(r.Context(), productID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tree)
}

// CreateReview handles POST /api/v1/products/{productId}/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	node, err := h.service.CreateReview(r.Context(), identityFrom(r), productID.String(), service.CreateReviewInput{
		ParentID: req.ParentID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, node)
}
