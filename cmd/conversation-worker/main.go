package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/mesavia/restaurant-ai-platform/cmd/mainconfig"
	"github.com/mesavia/restaurant-ai-platform/internal/catalog"
	appconfig "github.com/mesavia/restaurant-ai-platform/internal/config"
	"github.com/mesavia/restaurant-ai-platform/internal/conversation"
	"github.com/mesavia/restaurant-ai-platform/internal/messaging"
	"github.com/mesavia/restaurant-ai-platform/internal/observability/metrics"
	"github.com/mesavia/restaurant-ai-platform/internal/orders"
	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

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

	redisClient := newRedisClient(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)
	messagingMetrics := metrics.NewMessagingMetrics(prometheus.DefaultRegisterer)

	service, store := buildPipeline(cfg, db, pool, redisClient, pipelineMetrics, messagingMetrics, logger)

	queue, err := buildQueue(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build queue", "error", err)
		os.Exit(1)
	}

	worker := conversation.NewWorker(
		service,
		queue,
		logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithPipelineMetrics(pipelineMetrics),
	)
	worker.Start(ctx)

	cleaner := conversation.NewCleaner(store, cfg.ConversationTTL, cfg.CleanupHour, pipelineMetrics, logger)
	go cleaner.Run(ctx)

	logger.Info("conversation worker started", "workers", cfg.WorkerCount)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down conversation worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}
}

func buildPipeline(
	cfg *appconfig.Config,
	db *sql.DB,
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	pipelineMetrics *metrics.PipelineMetrics,
	messagingMetrics *metrics.MessagingMetrics,
	logger *logging.Logger,
) (*conversation.Service, *conversation.Store) {
	store := conversation.NewStore(db)
	catalogCache := catalog.NewCache(catalog.NewRepository(db), redisClient, cfg.MenuCacheTTL, logger)
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
	return service, store
}

func buildQueue(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*conversation.SQSQueue, error) {
	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	_ = logger
	return conversation.NewSQSQueue(sqs.NewFromConfig(awsConfig), cfg.InboundQueueURL), nil
}

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}
