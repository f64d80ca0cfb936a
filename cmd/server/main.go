package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appbilling "github.com/masjid/backend/internal/application/billing"
	"github.com/masjid/backend/internal/domain/shared"
	"github.com/masjid/backend/internal/infrastructure/cache"
	"github.com/masjid/backend/internal/infrastructure/config"
	"github.com/masjid/backend/internal/infrastructure/event"
	"github.com/masjid/backend/internal/infrastructure/logger"
	"github.com/masjid/backend/internal/infrastructure/persistence"
	"github.com/masjid/backend/internal/infrastructure/scheduler"
	"github.com/masjid/backend/internal/interfaces/http/handler"
	"github.com/masjid/backend/internal/interfaces/http/middleware"
	"github.com/masjid/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

//	@title			Sanda Billing API
//	@version		1.0
//	@description	Mosque membership dues billing - recurring invoices, payment allocation and arrears tracking

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Sanda Billing Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	memberRepo := persistence.NewGormMemberRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)
	runRepo := scheduler.NewGenerationRunRepository(db.DB)

	// Idempotency store guards bulk collections against double submission.
	// Redis is preferred; a single-instance deployment falls back to memory.
	var allocationOpts []appbilling.PaymentAllocationServiceOption
	var idempotencyStore shared.IdempotencyStore
	if cfg.Billing.IdempotencyEnabled {
		storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(true),
		)
		store, err := storeFactory.CreateStore()
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		idempotencyStore = store
		allocationOpts = append(allocationOpts, appbilling.WithIdempotencyStore(store))
	}
	defer func() {
		if idempotencyStore != nil {
			if err := idempotencyStore.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}
	}()

	// In-process event bus carries billing events to the audit log
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(appbilling.NewCollectionAuditHandler(log))
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	allocationOpts = append(allocationOpts, appbilling.WithEventPublisher(eventBus))

	// Initialize application services
	generationService := appbilling.NewInvoiceGenerationService(
		memberRepo,
		invoiceRepo,
		appbilling.GenerationConfig{
			DueDatePolicy:     appbilling.DueDatePolicy(cfg.Billing.DueDatePolicy),
			DueDateOffsetDays: cfg.Billing.DueDateOffsetDays,
		},
		log,
		appbilling.WithGenerationEventPublisher(eventBus),
	)
	allocationService := appbilling.NewPaymentAllocationService(
		memberRepo,
		txScope,
		appbilling.AllocationConfig{
			AdvancePolicy:     appbilling.AdvancePolicy(cfg.Billing.AdvancePolicy),
			RetryAttempts:     cfg.Billing.AllocationRetryAttempts,
			BulkMaxConcurrent: cfg.Billing.BulkMaxConcurrent,
			IdempotencyTTL:    cfg.Billing.IdempotencyTTL,
		},
		log,
		allocationOpts...,
	)
	arrearsService := appbilling.NewArrearsService(memberRepo, invoiceRepo, paymentRepo, log)

	// Monthly invoice generation scheduler
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()

	cronDay, cronHour, cronMinute, err := scheduler.ParseCronSchedule(cfg.Scheduler.GenerationCronSchedule)
	if err != nil {
		log.Fatal("Invalid generation cron schedule", zap.Error(err))
	}
	generationScheduler := scheduler.NewGenerationCronScheduler(
		scheduler.GenerationCronSchedulerConfig{
			Enabled:             cfg.Scheduler.Enabled,
			CronDay:             cronDay,
			CronHour:            cronHour,
			CronMinute:          cronMinute,
			MonthlyCronSchedule: cfg.Scheduler.GenerationCronSchedule,
			JobTimeout:          cfg.Scheduler.JobTimeout,
		},
		generationService,
		runRepo,
		log,
	)
	if cfg.Scheduler.Enabled {
		if err := generationScheduler.Start(schedulerCtx); err != nil {
			log.Fatal("Failed to start generation scheduler", zap.Error(err))
		}
		log.Info("Generation scheduler started",
			zap.String("schedule", cfg.Scheduler.GenerationCronSchedule))
	}

	// Initialize handlers
	billingHandler := handler.NewBillingHandler(generationService, allocationService, arrearsService)
	systemHandler := handler.NewSystemHandler()

	// Set gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validator with JSON field names in error messages
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack (order matters):
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health and readiness endpoints (outside API versioning)
	engine.GET("/health", healthHandler(db, log))
	engine.GET("/ready", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Billing domain (invoice generation, payments, arrears)
	billingRoutes := router.NewDomainGroup("billing", "/billing")
	billingRoutes.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "billing service ready"})
	})
	billingRoutes.POST("/periods/:period/generate", billingHandler.GenerateInvoices)
	billingRoutes.POST("/payments", billingHandler.AllocatePayment)
	billingRoutes.POST("/payments/bulk", billingHandler.BulkCollect)
	billingRoutes.GET("/arrears", billingHandler.ListArrears)
	billingRoutes.GET("/members", billingHandler.ListMembers)
	billingRoutes.GET("/members/:id/arrears", billingHandler.GetMemberArrears)
	billingRoutes.GET("/members/:id/invoices", billingHandler.ListInvoices)
	billingRoutes.GET("/members/:id/invoices/pending", billingHandler.ListPendingInvoices)
	billingRoutes.GET("/members/:id/payments", billingHandler.ListPayments)
	billingRoutes.GET("/scheduler/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": generationScheduler.GetStatus()})
	})

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	// Register all domain groups
	r.Register(billingRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Scheduler.Enabled {
		if err := generationScheduler.Stop(ctx); err != nil {
			log.Error("Error stopping generation scheduler", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if err := eventBus.Stop(ctx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
