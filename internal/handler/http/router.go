package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/internal/service"
	"github.com/utafrali/farmmarket/pkg/health"
	"github.com/utafrali/farmmarket/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the HTTP layer.
const ServiceName = "farmmarket"

// Services groups the application services the router dispatches to.
type Services struct {
	Cart     *service.CartService
	Checkout *service.CheckoutService
	Reviews  *service.ReviewService
	Orders   *service.OrderService
	Products *service.ProductService
}

// Options holds router settings that come from configuration.
type Options struct {
	PprofCIDRs     []string
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	// CatalogMaxAge is the Cache-Control max-age, in seconds, for catalog reads.
	CatalogMaxAge int
	// WriteRPS and WriteBurst bound checkout and review submissions per
	// caller. Zero disables the limit.
	WriteRPS   float64
	WriteBurst int
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(svcs Services, healthHandler *health.Handler, logger *slog.Logger, opts Options) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(opts.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(opts.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.Identity)
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, opts.PprofCIDRs, logger)

	cartHandler := NewCartHandler(svcs.Cart, logger)
	checkoutHandler := NewCheckoutHandler(svcs.Checkout, logger)
	reviewHandler := NewReviewHandler(svcs.Reviews, logger)
	orderHandler := NewOrderHandler(svcs.Orders, logger)
	productHandler := NewProductHandler(svcs.Products, logger)
	writeLimit := middleware.RateLimit(opts.WriteRPS, opts.WriteBurst, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productId}", cartHandler.UpdateItemQuantity)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		r.With(middleware.NoStore, writeLimit).Post("/checkout", checkoutHandler.Checkout)

		r.Route("/products/{productId}", func(r chi.Router) {
			r.With(middleware.CacheControl(opts.CatalogMaxAge)).Get("/", productHandler.GetProduct)
			r.Get("/reviews", reviewHandler.GetThread)
			r.With(writeLimit).Post("/reviews", reviewHandler.CreateReview)
		})
		r.With(middleware.CacheControl(opts.CatalogMaxAge)).
			Get("/farmers/{farmerId}/products", productHandler.ListFarmerProducts)

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Get("/", orderHandler.ListOrders)
			r.Get("/{orderId}", orderHandler.GetOrder)
			r.With(middleware.RequireRole(domain.RoleFarmer, domain.RoleAdmin)).
				Patch("/{orderId}/status", orderHandler.UpdateOrderStatus)
		})
	})

	return r
}
