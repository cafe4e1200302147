package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/faxingberling1/mailward/internal"
	"github.com/faxingberling1/mailward/internal/ai"
	"github.com/faxingberling1/mailward/internal/ai/anthropic"
	aimock "github.com/faxingberling1/mailward/internal/ai/mock"
	"github.com/faxingberling1/mailward/internal/billing"
	"github.com/faxingberling1/mailward/internal/cache"
	"github.com/faxingberling1/mailward/internal/email"
	"github.com/faxingberling1/mailward/internal/handler"
	"github.com/faxingberling1/mailward/internal/jobs"
	"github.com/faxingberling1/mailward/internal/middleware"
	"github.com/faxingberling1/mailward/internal/repository"
	"github.com/faxingberling1/mailward/internal/service"
	"github.com/faxingberling1/mailward/internal/storage"
	"github.com/faxingberling1/mailward/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repositories
	store := repository.NewStore(db)

	// Initialize the segment criteria cache. A dead Redis is tolerable: the
	// segment service degrades to calling the provider on every request.
	var segmentCache *cache.SegmentCache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, segment caching disabled", "error", err)
	} else {
		segmentCache = cache.NewSegmentCache(redisClient, cfg.SegmentCacheTTL)
		logger.Info("Segment cache ready", "addr", cfg.RedisAddr, "ttl", cfg.SegmentCacheTTL)
	}
	defer redisClient.Close()

	// Initialize the AI provider
	aiProvider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}
	logger.Info("AI provider ready", "provider", cfg.AIProvider)

	// Initialize object storage for contact exports
	files, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize email delivery
	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, logger)

	// Initialize billing
	billingService := billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
		StarterMonthlyPriceID:    cfg.StripeStarterMonthlyPriceID,
		StarterYearlyPriceID:     cfg.StripeStarterYearlyPriceID,
		GrowthMonthlyPriceID:     cfg.StripeGrowthMonthlyPriceID,
		GrowthYearlyPriceID:      cfg.StripeGrowthYearlyPriceID,
		ProMonthlyPriceID:        cfg.StripeProMonthlyPriceID,
		ProYearlyPriceID:         cfg.StripeProYearlyPriceID,
		EnterpriseMonthlyPriceID: cfg.StripeEnterpriseMonthlyPriceID,
		EnterpriseYearlyPriceID:  cfg.StripeEnterpriseYearlyPriceID,
	})

	// Initialize services
	enqueuer := worker.NewEnqueuer(store)
	usageService := service.NewUsageService(store, logger)
	workspaceService := service.NewWorkspaceService(store, logger)
	campaignService := service.NewCampaignService(store, usageService, enqueuer, logger)
	contactService := service.NewContactService(store, files, logger)
	segmentService := service.NewSegmentService(store, usageService, aiProvider, segmentCache, logger)

	// Initialize the background worker
	workerCfg := worker.DefaultConfig()
	workerCfg.Concurrency = cfg.WorkerConcurrency
	workerCfg.PollInterval = cfg.WorkerPollInterval
	workerCfg.JobTimeout = cfg.WorkerJobTimeout

	jobWorker, err := worker.New(store, workerCfg, logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}
	jobWorker.Register(jobs.NewSendCampaignHandler(store, sender, logger))
	jobWorker.Register(jobs.NewRefreshSegmentHandler(segmentService, logger))

	if cfg.WorkerEnabled {
		jobWorker.Start(ctx)
		defer jobWorker.Stop()
	} else {
		logger.Info("Background worker disabled")
	}

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(store, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsMw := middleware.NewMetricsMiddleware()
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Initialize handlers
	campaignHandler := handler.NewCampaignHandler(campaignService, logger)
	contactHandler := handler.NewContactHandler(contactService, logger)
	segmentHandler := handler.NewSegmentHandler(segmentService, logger)
	usageHandler := handler.NewUsageHandler(usageService)
	workspaceHandler := handler.NewWorkspaceHandler(workspaceService, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, workspaceService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics (basic auth when configured)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Local contact exports are served straight from disk in development.
	if cfg.StorageProvider == "local" {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// Stripe webhooks authenticate by signature, not API key
	mux.HandleFunc("POST /webhooks/stripe", webhookHandler.HandleStripe)

	// Authenticated API routes
	requireWorkspace := authMw.RequireWorkspace
	requireAdmin := middleware.Stack(authMw.RequireWorkspace, authMw.RequireAdmin)

	mux.Handle("POST /api/campaigns", requireWorkspace(http.HandlerFunc(campaignHandler.Create)))
	mux.Handle("GET /api/campaigns", requireWorkspace(http.HandlerFunc(campaignHandler.List)))
	mux.Handle("GET /api/campaigns/{id}", requireWorkspace(http.HandlerFunc(campaignHandler.Get)))
	mux.Handle("PATCH /api/campaigns/{id}", requireWorkspace(http.HandlerFunc(campaignHandler.Update)))
	mux.Handle("DELETE /api/campaigns/{id}", requireWorkspace(http.HandlerFunc(campaignHandler.Delete)))
	mux.Handle("POST /api/campaigns/{id}/schedule", requireWorkspace(http.HandlerFunc(campaignHandler.Schedule)))

	mux.Handle("POST /api/contacts", requireWorkspace(http.HandlerFunc(contactHandler.Create)))
	mux.Handle("GET /api/contacts", requireWorkspace(http.HandlerFunc(contactHandler.List)))
	mux.Handle("POST /api/contacts/export", requireWorkspace(http.HandlerFunc(contactHandler.Export)))
	mux.Handle("GET /api/contacts/{id}", requireWorkspace(http.HandlerFunc(contactHandler.Get)))
	mux.Handle("DELETE /api/contacts/{id}", requireWorkspace(http.HandlerFunc(contactHandler.Delete)))

	mux.Handle("POST /api/segments", requireWorkspace(http.HandlerFunc(segmentHandler.Create)))
	mux.Handle("POST /api/segments/generate", requireWorkspace(http.HandlerFunc(segmentHandler.Generate)))
	mux.Handle("GET /api/segments", requireWorkspace(http.HandlerFunc(segmentHandler.List)))
	mux.Handle("GET /api/segments/{id}", requireWorkspace(http.HandlerFunc(segmentHandler.Get)))
	mux.Handle("POST /api/segments/{id}/refresh", requireWorkspace(http.HandlerFunc(segmentHandler.Refresh)))
	mux.Handle("DELETE /api/segments/{id}", requireWorkspace(http.HandlerFunc(segmentHandler.Delete)))

	mux.Handle("GET /api/usage", requireWorkspace(http.HandlerFunc(usageHandler.Get)))

	// Administrative workspace management
	mux.Handle("POST /api/admin/workspaces", requireAdmin(http.HandlerFunc(workspaceHandler.Create)))
	mux.Handle("GET /api/admin/workspaces/{id}", requireAdmin(http.HandlerFunc(workspaceHandler.Get)))
	mux.Handle("DELETE /api/admin/workspaces/{id}", requireAdmin(http.HandlerFunc(workspaceHandler.Delete)))
	mux.Handle("POST /api/admin/workspaces/{id}/reset-limits", requireAdmin(http.HandlerFunc(workspaceHandler.ResetLimits)))
	mux.Handle("POST /api/admin/workspaces/{id}/credits", requireAdmin(http.HandlerFunc(workspaceHandler.AddCredits)))
	mux.Handle("PUT /api/admin/workspaces/{id}/plan", requireAdmin(http.HandlerFunc(workspaceHandler.ChangePlan)))
	mux.Handle("POST /api/admin/workspaces/{id}/suspend", requireAdmin(http.HandlerFunc(workspaceHandler.Suspend)))
	mux.Handle("POST /api/admin/workspaces/{id}/reactivate", requireAdmin(http.HandlerFunc(workspaceHandler.Reactivate)))

	// Outermost middleware: metrics then request logging
	root := middleware.Stack(metricsMw.Handler, loggingMw.Handler)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newAIProvider builds the configured segmentation provider.
func newAIProvider(cfg *internal.Config, logger *slog.Logger) (ai.Provider, error) {
	switch cfg.AIProvider {
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
	default:
		return aimock.New(logger), nil
	}
}

// newStorage builds the configured object storage backend.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case "r2":
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
