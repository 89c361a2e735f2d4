package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/farmmarket/internal/config"
	"github.com/utafrali/farmmarket/internal/event"
	handler "github.com/utafrali/farmmarket/internal/handler/http"
	"github.com/utafrali/farmmarket/internal/messaging"
	"github.com/utafrali/farmmarket/internal/repository"
	"github.com/utafrali/farmmarket/internal/repository/memory"
	pgrepo "github.com/utafrali/farmmarket/internal/repository/postgres"
	redisrepo "github.com/utafrali/farmmarket/internal/repository/redis"
	"github.com/utafrali/farmmarket/internal/seed"
	"github.com/utafrali/farmmarket/internal/service"
	"github.com/utafrali/farmmarket/migrations"
	"github.com/utafrali/farmmarket/pkg/database"
	"github.com/utafrali/farmmarket/pkg/health"
	"github.com/utafrali/farmmarket/pkg/httpclient"
	pkgkafka "github.com/utafrali/farmmarket/pkg/kafka"
	"github.com/utafrali/farmmarket/pkg/tracing"
)

// App wires together all dependencies and runs the marketplace API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	dispatcher     *messaging.Dispatcher
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
// Anything opened before a failure is closed again.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	// Tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, cfg.Tracing(handler.ServiceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)

	// PostgreSQL, with schema migrations applied on startup.
	pgCfg := cfg.Postgres()
	a.pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.String("database", pgCfg.DBName),
	)
	if err := database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.pool, handler.ServiceName); err != nil {
		logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", a.pool.Ping)

	// Cart store and review thread cache.
	store, threads, err := a.openStorage(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Kafka. A nil publisher turns events off.
	var publisher event.Publisher
	if cfg.EventsEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("no kafka brokers configured, domain events disabled")
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Order message handoff.
	handoff, breaker := newHandoff(cfg, logger)
	if breaker != nil {
		healthHandler.RegisterNonCritical("order-webhook", breaker.Check)
	}
	a.dispatcher = messaging.NewDispatcher(handoff, cfg.HandoffTimeout, logger)

	// Build the dependency graph.
	products := pgrepo.NewProductRepository(a.pool)
	orders := pgrepo.NewOrderRepository(a.pool)
	reviews := pgrepo.NewReviewRepository(a.pool)
	profiles := pgrepo.NewProfileRepository(a.pool)

	cartService := service.NewCartService(store, products, eventProducer, logger)
	svcs := handler.Services{
		Cart: cartService,
		Checkout: service.NewCheckoutService(
			cartService,
			orders,
			eventProducer,
			messaging.NewLinkBuilder(cfg.ChatBaseURL, cfg.ChatPhone),
			a.dispatcher,
			cfg.Currency,
			logger,
		),
		Reviews:  service.NewReviewService(reviews, profiles, products, threads, eventProducer, logger),
		Orders:   service.NewOrderService(orders, eventProducer, logger),
		Products: service.NewProductService(products),
	}

	// HTTP router.
	router := handler.NewRouter(svcs, healthHandler, logger, handler.Options{
		PprofCIDRs:     cfg.PprofCIDRs,
		CORS:           cfg.CORS(),
		RequestTimeout: cfg.RequestTimeout,
		CatalogMaxAge:  cfg.CatalogMaxAge,
		WriteRPS:       cfg.WriteRateLimit,
		WriteBurst:     cfg.WriteRateBurst,
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// openStorage returns the cart store and thread cache for the configured mode.
func (a *App) openStorage(ctx context.Context, healthHandler *health.Handler) (repository.KeyValueStore, repository.ThreadCache, error) {
	if a.cfg.StorageMode == config.StorageMemory {
		a.logger.Warn("using in-memory cart storage, carts are lost on restart")
		return memory.NewKeyValueStore(), memory.NewThreadCache(), nil
	}

	rdb, err := database.NewRedisClient(ctx, a.cfg.Redis())
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	a.logger.Info("connected to Redis", slog.String("addr", rdb.Options().Addr), slog.Int("db", rdb.Options().DB))

	store := redisrepo.NewKeyValueStore(rdb, a.cfg.CartTTL)
	healthHandler.RegisterCritical("redis", store.Ping)
	return store, redisrepo.NewThreadCache(rdb, a.cfg.ThreadCacheTTL), nil
}

// newHandoff builds the order message channel. The breaker client is
// returned for health reporting when the webhook is used.
func newHandoff(cfg *config.Config, logger *slog.Logger) (messaging.Handoff, *httpclient.CircuitBreakerClient) {
	if cfg.HandoffMode != config.HandoffWebhook {
		return messaging.NewLogHandoff(logger), nil
	}

	clientCfg := httpclient.DefaultConfig()
	clientCfg.MaxRetries = cfg.WebhookRetries
	clientCfg.Timeout = cfg.HandoffTimeout

	breakerCfg := httpclient.DefaultCircuitBreakerConfig("order-webhook")
	if cfg.BreakerFailures > 0 {
		breakerCfg.MinRequests = cfg.BreakerFailures
	}

	breaker := httpclient.NewCircuitBreakerClient(httpclient.New(clientCfg), breakerCfg, logger)
	return messaging.NewWebhookHandoff(breaker, cfg.WebhookURL), breaker
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.close(context.Background())
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.close(shutdownCtx)

	a.logger.Info("application shutdown complete")
	return nil
}

// close releases everything NewApp opened. In-flight order handoffs are
// drained first so they can still publish through open clients.
func (a *App) close(ctx context.Context) {
	if a.dispatcher != nil {
		if err := a.dispatcher.Wait(ctx); err != nil {
			a.logger.Warn("order handoffs still running at shutdown", slog.String("error", err.Error()))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}

// Migrate applies pending schema migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	pending, err := database.PendingMigrations(migrations.FS)
	if err != nil {
		return err
	}
	logger.Info("applying migrations", slog.Int("files", len(pending)))

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Seed applies migrations and loads the demo catalog.
func Seed(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if _, err := seed.Run(ctx, pool, seed.DefaultCatalog(), logger); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}
