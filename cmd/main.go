package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	_ "finsync/docs"
	"finsync/internal/analytics"
	"finsync/internal/caching"
	"finsync/internal/common"
	"finsync/internal/config"
	"finsync/internal/handlers"
	"finsync/internal/jobs/background"
	"finsync/internal/middleware"
	"finsync/internal/repositories"
	"finsync/internal/services"
	"finsync/pkg/database"
)

const version = "1.0.0"

const (
	syncRequestLimit  = 10
	syncRequestWindow = time.Minute
	shutdownTimeout   = 15 * time.Second
)

// @title finsync API
// @version 1.0
// @description Subscription billing and payment reconciliation service.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := common.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(cfg.Database.URL, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, cfg.Database.URL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	cacheSvc := caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	defer cacheSvc.Close()

	// Webhook archiving is optional; without an endpoint the service runs without it.
	var archive services.ArchiveService
	var storage handlers.StorageChecker
	if cfg.Minio.Endpoint != "" {
		minioArchive, err := services.NewArchiveService(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL, cfg.Minio.Bucket)
		if err != nil {
			return fmt.Errorf("initialize archive: %w", err)
		}
		if err := minioArchive.EnsureBucketExists(ctx); err != nil {
			logger.Warn("webhook archive bucket unavailable", zap.String("bucket", cfg.Minio.Bucket), zap.Error(err))
		}
		archive = minioArchive
		storage = minioArchive
	}

	// Repositories
	store := repositories.NewStore(pool)
	settingsRepo := repositories.NewSettingsRepository(pool)
	budgetRepo := repositories.NewBudgetRepository(pool)

	// Services
	settingsSvc := services.NewSettingsService(settingsRepo, cacheSvc, cfg.Processor, cfg.Plans, logger)
	processor := services.NewAsaasService(settingsSvc, cfg.Processor.Timeout, logger)
	notifier := services.NewNotificationService(cacheSvc, logger)
	reconciler := services.NewReconciliationService(store, processor, settingsSvc, notifier, logger)
	subscriptionSvc := services.NewSubscriptionService(store, processor, settingsSvc, reconciler, cfg.Jobs.PlanChangeTTL, logger)
	budgetSvc := analytics.NewBudgetService(budgetRepo, logger)

	jobScheduler, err := background.NewJobScheduler(reconciler, store.Subscriptions(), cacheSvc, cfg.Jobs, logger)
	if err != nil {
		return fmt.Errorf("initialize job scheduler: %w", err)
	}
	jobScheduler.Start()
	defer func() {
		if err := jobScheduler.Stop(); err != nil {
			logger.Error("job scheduler shutdown failed", zap.Error(err))
		}
	}()

	auth, err := middleware.NewAuthenticator(cfg.Auth, logger)
	if err != nil {
		return fmt.Errorf("initialize authentication: %w", err)
	}
	defer auth.Close()

	limiter := handlers.NewSyncLimiter(cacheSvc, syncRequestLimit, syncRequestWindow, logger)

	// Handlers
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, storage, jobScheduler, version)
	webhookHandlers := handlers.NewWebhookHandlers(reconciler, settingsSvc, archive, logger)
	subscriptionHandlers := handlers.NewSubscriptionHandlers(subscriptionSvc, reconciler, limiter, logger)
	paymentHandlers := handlers.NewPaymentHandlers(reconciler, limiter, logger)
	confirmationHandlers := handlers.NewConfirmationHandlers(jobScheduler, limiter)
	budgetHandlers := handlers.NewBudgetHandlers(budgetSvc)
	jobHandlers := handlers.NewJobHandlers(jobScheduler, logger)

	e := echo.New()
	e.HideBanner = true
	e.Validator = common.NewRequestValidator()

	// Global middleware
	e.Use(echoMiddleware.RequestLoggerWithConfig(requestLoggerConfig(logger)))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.LivenessCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/detailed", healthHandlers.DetailedHealthCheck)

	// Processor callbacks authenticate with the shared webhook token
	e.POST("/webhooks/processor", webhookHandlers.ProcessorWebhook)

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Protected routes
	v1 := e.Group("/v1", versionMiddleware.VersionHeader("v1"))
	v1.Use(auth.Middleware()...)

	v1.GET("/subscriptions/current", subscriptionHandlers.GetCurrent)
	v1.POST("/subscriptions/checkout", subscriptionHandlers.Checkout)
	v1.POST("/subscriptions/resync", subscriptionHandlers.Resync)
	v1.POST("/subscriptions/cancel", subscriptionHandlers.CancelSubscription)
	v1.GET("/subscriptions/plan-change", subscriptionHandlers.GetPlanChange)
	v1.POST("/subscriptions/plan-change", subscriptionHandlers.RequestPlanChange)
	v1.DELETE("/subscriptions/plan-change", subscriptionHandlers.CancelPlanChange)
	v1.POST("/subscriptions/payment-method/void-overdue", subscriptionHandlers.VoidOverduePayments)

	v1.POST("/payments/verify", paymentHandlers.VerifyPayment)
	v1.POST("/payments/sweep", paymentHandlers.SweepPayments)

	v1.POST("/confirmations", confirmationHandlers.StartConfirmation)
	v1.GET("/confirmations/:id", confirmationHandlers.GetConfirmation)
	v1.DELETE("/confirmations/:id", confirmationHandlers.StopConfirmation)

	v1.GET("/budgets/progress", budgetHandlers.ListProgress)
	v1.GET("/budgets/:id/progress", budgetHandlers.GetProgress)

	admin := v1.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	admin.GET("/jobs", jobHandlers.GetJobStatus)
	admin.POST("/jobs/:name/run", jobHandlers.RunJob)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("finsync server starting",
			zap.String("version", version),
			zap.Int("port", cfg.Server.Port),
			zap.String("env", cfg.Server.Env))
		if err := e.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func requestLoggerConfig(logger *zap.Logger) echoMiddleware.RequestLoggerConfig {
	return echoMiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.RequestID != "" {
				fields = append(fields, zap.String("request_id", v.RequestID))
			}
			if v.Error != nil {
				logger.Error("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	}
}
