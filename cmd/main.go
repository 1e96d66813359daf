package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-reconciler/internal/api"
	"github.com/akylbek/payment-system/refund-reconciler/internal/clients"
	"github.com/akylbek/payment-system/refund-reconciler/internal/config"
	"github.com/akylbek/payment-system/refund-reconciler/internal/events"
	"github.com/akylbek/payment-system/refund-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/refund-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/refund-reconciler/internal/lock"
	"github.com/akylbek/payment-system/refund-reconciler/internal/repository"
	"github.com/akylbek/payment-system/refund-reconciler/internal/retry"
	"github.com/akylbek/payment-system/refund-reconciler/internal/secrets"
	"github.com/akylbek/payment-system/refund-reconciler/internal/service"
	"github.com/akylbek/payment-system/refund-reconciler/internal/telemetry"
	"github.com/akylbek/payment-system/refund-reconciler/internal/webhook"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize telemetry
	if err := telemetry.InitTelemetry("refund-reconciler", cfg.Environment, cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Refund Reconciler")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	refundRepo := repository.NewRefundRepository(db)
	if err := refundRepo.InitDB(); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	paymentRepo := repository.NewPaymentRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Secrets
	secretsProvider, err := newSecretsProvider(ctx, cfg)
	if err != nil {
		telemetry.Logger.Fatal("Failed to initialize secrets provider", zap.Error(err))
	}
	keyID, err := secretsProvider.GetSecret(ctx, cfg.GatewayKeyIDSecret)
	if err != nil {
		telemetry.Logger.Fatal("Failed to load gateway key id", zap.Error(err))
	}
	keySecret, err := secretsProvider.GetSecret(ctx, cfg.GatewayKeySecretSecret)
	if err != nil {
		telemetry.Logger.Fatal("Failed to load gateway key secret", zap.Error(err))
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	defer redisClient.Close()

	// Connect to NATS
	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	// Connect to Kafka
	kafkaWriter := events.NewWriter(cfg.KafkaBrokers, cfg.RefundTopic)
	defer kafkaWriter.Close()

	dispatcher := service.NewDispatcher(
		userRepo,
		clients.NewPushClient(nc, cfg.NotificationSubject, cfg.NatsRequestTimeout),
		clients.NewSubscriptionClient(nc, cfg.CancelSubject, cfg.NatsRequestTimeout),
		retry.Policy{Attempts: cfg.CancelAttempts, Delay: cfg.CancelDelay},
	)

	engine := service.NewEngine(service.EngineDeps{
		Refunds:  refundRepo,
		Payments: paymentRepo,
		Gateway: gateway.NewClient(gateway.Config{
			BaseURL:   cfg.GatewayBaseURL,
			KeyID:     keyID,
			KeySecret: keySecret,
			Timeout:   cfg.GatewayTimeout,
		}),
		Verifier:   webhook.NewVerifier(secretsProvider, cfg.WebhookSecretName),
		Dispatcher: dispatcher,
		Locker:     lock.NewRedisLocker(redisClient),
		Publisher:  events.NewKafkaPublisher(kafkaWriter),
		LockTTL:    cfg.RefundLockTTL,
	})
	reports := service.NewMetricsAggregator(refundRepo, paymentRepo)

	// Background reconciliation of stale pending refunds
	reconciler := service.NewReconciler(refundRepo, engine, service.ReconcilerConfig{
		Interval:  cfg.ReconcileInterval,
		MinAge:    cfg.ReconcileMinAge,
		BatchSize: cfg.ReconcileBatchSize,
		Workers:   cfg.ReconcileWorkers,
	})
	go reconciler.Run(ctx)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(engine, reports),
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Refund Reconciler starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	telemetry.Logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}

func newSecretsProvider(ctx context.Context, cfg *config.Config) (interfaces.SecretsProvider, error) {
	if cfg.SecretsBackend != "aws" {
		return secrets.EnvProvider{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return secrets.NewAWSProvider(awsCfg, cfg.SecretsCacheTTL), nil
}
