package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-payment-notify/internal/application/order"
	"github.com/go-payment-notify/internal/application/payment"
	"github.com/go-payment-notify/internal/application/webhook"
	"github.com/go-payment-notify/internal/config"
	"github.com/go-payment-notify/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-payment-notify/internal/infrastructure/jwt"
	"github.com/go-payment-notify/internal/infrastructure/metrics"
	"github.com/go-payment-notify/internal/infrastructure/processor"
	"github.com/go-payment-notify/internal/infrastructure/redis"
	s3infra "github.com/go-payment-notify/internal/infrastructure/s3"
	"github.com/go-payment-notify/internal/infrastructure/smtp"
	"github.com/go-payment-notify/internal/infrastructure/sns"
	"github.com/go-payment-notify/internal/pkg/keylock"
	transporthttp "github.com/go-payment-notify/internal/transport/http"
	"github.com/go-payment-notify/internal/transport/http/handler"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if cfg.BypassHashVerification() {
		slog.Warn("notification hash verification is DISABLED", "env", cfg.AppEnv)
	}

	ctx := context.Background()

	awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(awsCfg, cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	orders := dynamo.NewOrderRepo(dynamoClient, cfg.DynamoTables.Orders)

	// Cancel links cannot be issued without signing keys.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	scheme, err := payment.SchemeByName(cfg.HashScheme)
	if err != nil {
		log.Fatal(err)
	}
	templates, err := payment.LoadTemplates(cfg.PayInfoTemplatesPath)
	if err != nil {
		log.Fatal(err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	classifier := payment.NewClassifier()

	reconciler := payment.NewReconciler(payment.ReconcilerDeps{
		Orders:       orders,
		Formatter:    payment.NewFormatter(templates),
		Methods:      payment.NewRegistry(cfg.Processor.Channels),
		Classifier:   classifier,
		Sender:       processor.NewClient(cfg.Processor),
		ProcessorURL: cfg.Processor.URL,
		Policy:       payment.FollowUpPolicy(cfg.FollowUpFailurePolicy),
		Observer:     m,
	})

	health := map[string]handler.Pinger{}

	// Redis (optional): without it notifications are serialized per process only.
	var locker webhook.Locker
	redisClient, err := redis.New(ctx, cfg.RedisURL)
	switch {
	case err != nil:
		log.Fatalf("redis: %v", err)
	case redisClient != nil:
		locker = redis.NewLocker(redisClient, cfg.LockTTL)
		health["redis"] = redisClient
		defer redisClient.Close()
	default:
		slog.Warn("REDIS_URL not set, falling back to in-process notification locks")
		locker = keylock.New()
	}

	urls := webhook.NewURLBuilder(cfg.ShopBaseURL, cfg.PublicBaseURL)

	webhookSvc := webhook.NewService(webhook.ServiceDeps{
		Verifier:           payment.NewVerifier(scheme),
		Classifier:         classifier,
		Reconciler:         reconciler,
		Secret:             cfg.WebhookSecret,
		BypassVerification: cfg.BypassHashVerification(),
		Orders:             orders,
		Receipts:           dynamo.NewReceiptRepo(dynamoClient, cfg.DynamoTables.Receipts),
		Carts:              dynamo.NewCartRepo(dynamoClient, cfg.DynamoTables.Carts),
		Archive:            s3infra.NewArchive(s3infra.NewClient(awsCfg, cfg), cfg.ArchiveBucket),
		Publisher:          sns.NewPublisher(awsCfg, cfg),
		Mailer:             smtp.NewMailer(cfg),
		Locker:             locker,
		Tokens:             jwtProvider,
		URLs:               urls,
		Metrics:            m,
	})

	deps := &transporthttp.Deps{
		Webhook:  webhookSvc,
		Orders:   order.NewService(orders, jwtProvider),
		URLs:     urls,
		Health:   health,
		Gatherer: prometheus.DefaultGatherer,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Processor.Timeout + 15*time.Second, // a follow-up debit runs inside the request
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
