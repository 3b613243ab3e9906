package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mesavia/restaurant-ai-platform/cmd/mainconfig"
	"github.com/mesavia/restaurant-ai-platform/internal/api/router"
	"github.com/mesavia/restaurant-ai-platform/internal/catalog"
	appconfig "github.com/mesavia/restaurant-ai-platform/internal/config"
	"github.com/mesavia/restaurant-ai-platform/internal/conversation"
	"github.com/mesavia/restaurant-ai-platform/internal/http/handlers"
	"github.com/mesavia/restaurant-ai-platform/internal/messaging"
	"github.com/mesavia/restaurant-ai-platform/internal/observability/metrics"
	"github.com/mesavia/restaurant-ai-platform/internal/orders"
	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting restaurant-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = redisClient.Close() }()
	}

	messagingMetrics := metrics.NewMessagingMetrics(prometheus.DefaultRegisterer)
	catalogCache := catalog.NewCache(catalog.NewRepository(db), redisClient, cfg.MenuCacheTTL, logger)

	var publisher *conversation.Publisher
	var worker *conversation.Worker

	if cfg.UseMemoryQueue {
		// Development mode: the turn pipeline runs in-process off an
		// in-memory queue so a single binary serves the whole flow.
		queue := conversation.NewMemoryQueue(256)
		publisher = conversation.NewPublisher(queue, logger)

		pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)
		store := conversation.NewStore(db)
		ordersRepo := orders.NewRepository(pool)
		sender := messaging.NewWhatsAppSender(
			cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.WhatsAppFromNumber,
			messagingMetrics, logger,
		)
		llm := conversation.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIMaxTokens, logger)
		notifier := conversation.NewNotifier(store, sender, ordersRepo, logger)
		service := conversation.NewService(
			store, catalogCache, llm, notifier, sender,
			conversation.ServiceConfig{
				ChunkMaxLength:     cfg.ChunkMaxLength,
				ChunkDispatchDelay: cfg.ChunkDispatchDelay,
				Metrics:            pipelineMetrics,
			},
			logger,
		)
		worker = conversation.NewWorker(
			service,
			queue,
			logger,
			conversation.WithWorkerCount(cfg.WorkerCount),
			conversation.WithPipelineMetrics(pipelineMetrics),
		)
		worker.Start(ctx)
		logger.Info("in-process conversation worker started")
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
		publisher = conversation.NewPublisher(queue, logger)
	}

	webhookURL := cfg.PublicBaseURL + "/webhooks/whatsapp/"
	webhookHandler := messaging.NewWebhookHandler(publisher, cfg.TwilioAuthToken, webhookURL, messagingMetrics, logger)
	adminCatalog := handlers.NewAdminCatalogHandler(catalogCache, logger)

	r := router.New(&router.Config{
		Logger:          logger,
		WebhookHandler:  webhookHandler,
		AdminCatalog:    adminCatalog,
		AdminAuthSecret: cfg.AdminToken,
		MetricsHandler:  promhttp.Handler(),
		WebhookRate:     cfg.WebhookRatePerSec,
		WebhookBurst:    cfg.WebhookBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if worker != nil {
		waitCh := make(chan struct{})
		go func() {
			worker.Wait()
			close(waitCh)
		}()
		select {
		case <-waitCh:
		case <-shutdownCtx.Done():
			logger.Error("worker shutdown timed out", "error", shutdownCtx.Err())
		}
	}

	logger.Info("server stopped")
}
