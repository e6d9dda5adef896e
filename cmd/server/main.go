package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"price-alert-engine/internal/config"
	"price-alert-engine/internal/handlers"
	"price-alert-engine/internal/middleware"
	"price-alert-engine/internal/repository"
	"price-alert-engine/internal/services"
	"price-alert-engine/pkg/cache"
	"price-alert-engine/pkg/logger"
	"price-alert-engine/pkg/metrics"
	"price-alert-engine/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server represents the main application server: the evaluation
// scheduler plus the admin HTTP surface around it.
type Server struct {
	httpServer   *http.Server
	config       *config.Config
	repo         *repository.MongoRepository
	remoteTier   *cache.RedisTier
	quoteCache   *cache.Cache
	fetchLimiter *ratelimiter.RateLimiter
	adminLimiter *ratelimiter.RateLimiter
	collector    *metrics.Collector
	scheduler    *services.Scheduler
	router       *handlers.Router

	cancelScheduler context.CancelFunc
	schedulerDone   chan struct{}
}

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logging
	loggerConfig := &logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
		OutputPaths: cfg.Logging.OutputPaths,
	}

	if err := logger.Initialize(loggerConfig); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log := logger.GetLogger()

	log.Info("Starting price alert engine",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("mongodb_uri", cfg.MongoDB.URI),
		zap.String("upstream_endpoint", cfg.Upstream.Endpoint),
		zap.Duration("scheduler_interval", cfg.Scheduler.Interval),
		zap.Duration("cycle_deadline", cfg.Scheduler.Deadline),
		zap.String("log_level", cfg.Logging.Level),
		zap.String("environment", cfg.Logging.Environment),
	)

	// Initialize and start server
	server, err := NewServer(cfg)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	// Start server with graceful shutdown
	if err := server.Start(); err != nil {
		log.Fatal("Server failed to start", zap.Error(err))
	}
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	log := logger.GetLogger()

	log.Info("Initializing engine components")

	// Alert repository
	log.Debug("Connecting to alert repository")
	repo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize alert repository: %w", err)
	}

	// Remote cache tier; the engine runs local-only without one
	var remoteTier *cache.RedisTier
	if cfg.Cache.RedisAddr != "" {
		log.Debug("Connecting to remote cache tier", zap.String("addr", cfg.Cache.RedisAddr))
		remoteTier = cache.NewRedisTier(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	} else {
		log.Info("No remote cache tier configured, running local-only")
	}

	var remote cache.RemoteTier
	if remoteTier != nil {
		remote = remoteTier
	}
	quoteCache := cache.New(cfg.Cache.MaxSize, remote, cfg.Cache.RemoteTimeout)

	// Admission control for upstream fetches, one bucket per resource class
	fetchLimiter := ratelimiter.New(ratelimiter.Limit{
		Capacity:        cfg.RateLimit.Ticker.Capacity,
		RefillPerSecond: cfg.RateLimit.Ticker.RefillPerSecond,
	})

	// Separate limiter for the admin surface, one bucket per client IP
	adminLimiter := ratelimiter.New(ratelimiter.Limit{
		Capacity:        cfg.Server.RequestsPerSecond,
		RefillPerSecond: cfg.Server.RequestsPerSecond,
	})

	collector := metrics.NewCollector()

	// Market data transport
	log.Debug("Initializing market data transport")
	binance := services.NewBinanceClient(&cfg.Upstream)
	if err := binance.IsHealthy(context.Background()); err != nil {
		log.Warn("Upstream health check failed", zap.Error(err))
	} else {
		log.Info("Upstream connection healthy")
	}

	fetcher := services.NewFetchClient(binance, quoteCache, fetchLimiter, collector, cfg)

	// Notifier: webhook when configured, otherwise log-only
	var notifier services.Notifier
	if cfg.Notifier.WebhookURL != "" {
		notifier = services.NewWebhookNotifier(&cfg.Notifier)
	} else {
		log.Info("No webhook configured, triggers will be logged only")
		notifier = services.LogNotifier{}
	}

	scheduler := services.NewScheduler(repo, notifier, fetcher, collector, cfg.Scheduler)

	// Admin surface handlers
	healthChecker := services.NewHealthChecker(repo, quoteCache, binance)
	router := handlers.NewRouter(
		handlers.NewAlertHandler(repo),
		handlers.NewHealthHandler(healthChecker),
		handlers.NewStatusHandler(scheduler, quoteCache, fetchLimiter, collector),
	)

	log.Info("Engine components initialized successfully")

	return &Server{
		config:       cfg,
		repo:         repo,
		remoteTier:   remoteTier,
		quoteCache:   quoteCache,
		fetchLimiter: fetchLimiter,
		adminLimiter: adminLimiter,
		collector:    collector,
		scheduler:    scheduler,
		router:       router,
	}, nil
}

// Start starts the evaluation scheduler and the admin HTTP server, then
// blocks until shutdown.
func (s *Server) Start() error {
	log := logger.GetLogger()

	// Set Gin mode based on environment
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Debug("Creating Gin engine")
	engine := gin.New()

	s.setupMiddleware(engine)
	s.router.SetupHealthRoutes(engine)
	s.router.SetupRoutes(engine)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      engine,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
		// Additional performance optimizations
		ReadHeaderTimeout: 5 * time.Second, // Prevent slow header attacks
		MaxHeaderBytes:    1 << 20,         // 1MB max header size
		TLSNextProto:      make(map[string]func(*http.Server, *tls.Conn, http.Handler)),
	}

	log.Info("HTTP server configured",
		zap.String("address", s.httpServer.Addr),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout),
		zap.Duration("idle_timeout", s.config.Server.IdleTimeout),
	)

	// Start the evaluation scheduler
	schedulerCtx, cancel := context.WithCancel(context.Background())
	s.cancelScheduler = cancel
	s.schedulerDone = make(chan struct{})
	go func() {
		defer close(s.schedulerDone)
		s.scheduler.Run(schedulerCtx)
	}()

	// Start server in a goroutine
	go func() {
		log.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	return s.waitForShutdown()
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware(engine *gin.Engine) {
	log := logger.GetLogger()

	log.Debug("Setting up middleware stack")

	// Recovery middleware with structured logging (should be first)
	engine.Use(logger.RecoveryMiddleware())

	// Structured logging middleware with correlation IDs
	engine.Use(logger.LoggingMiddleware())

	// Metrics middleware to track admin API usage
	engine.Use(middleware.MetricsMiddleware(s.collector))

	// Rate limiting for the admin surface
	engine.Use(s.adminLimiter.Middleware())

	log.Debug("Middleware stack configured")
}

// waitForShutdown waits for interrupt signal and performs graceful shutdown
func (s *Server) waitForShutdown() error {
	log := logger.GetLogger()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Stop scheduling new cycles first; in-flight cycle tasks observe
	// the cancelled context and stop at the next boundary.
	s.cancelScheduler()
	select {
	case <-s.schedulerDone:
	case <-time.After(10 * time.Second):
		log.Warn("Scheduler did not stop within timeout")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info("Shutting down HTTP server", zap.Duration("timeout", 30*time.Second))
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	s.cleanup()

	log.Info("Server gracefully stopped")
	return nil
}

// cleanup performs cleanup of all services
func (s *Server) cleanup() {
	log := logger.GetLogger()

	log.Info("Cleaning up services...")

	if s.repo != nil {
		log.Debug("Closing alert repository")
		if err := s.repo.Close(); err != nil {
			log.Error("Error closing alert repository", zap.Error(err))
		}
	}

	if s.remoteTier != nil {
		log.Debug("Closing remote cache tier")
		if err := s.remoteTier.Close(); err != nil {
			log.Error("Error closing remote cache tier", zap.Error(err))
		}
	}

	// Sync logger before exit
	if err := logger.GetLogger().Sync(); err != nil {
		// Don't log this error as logger might be closed
		fmt.Printf("Error syncing logger: %v\n", err)
	}

	log.Info("Cleanup completed")
}
