package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/api"
	"github.com/akylbek/payment-system/checkout-service/internal/checksum"
	"github.com/akylbek/payment-system/checkout-service/internal/config"
	"github.com/akylbek/payment-system/checkout-service/internal/events"
	"github.com/akylbek/payment-system/checkout-service/internal/fulfillment"
	"github.com/akylbek/payment-system/checkout-service/internal/gateway"
	"github.com/akylbek/payment-system/checkout-service/internal/handlers"
	"github.com/akylbek/payment-system/checkout-service/internal/middleware"
	"github.com/akylbek/payment-system/checkout-service/internal/payment"
	"github.com/akylbek/payment-system/checkout-service/internal/reconcile"
	"github.com/akylbek/payment-system/checkout-service/internal/repository"
	"github.com/akylbek/payment-system/checkout-service/internal/telemetry"
	"github.com/akylbek/payment-system/checkout-service/internal/txid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize telemetry
	if err := telemetry.InitTelemetry(cfg.ServiceName, cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	logger := telemetry.Logger
	logger.Info("Starting checkout service")

	signer, err := checksum.New(cfg.SaltKey, cfg.SaltIndex)
	if err != nil {
		logger.Fatal("Invalid gateway credentials", zap.Error(err))
	}

	httpClient := &http.Client{Timeout: cfg.GatewayTimeout}
	gw := gateway.NewClient(httpClient, signer, cfg.GatewayBaseURL, cfg.MerchantID, cfg.GatewayTimeout, logger)

	// Connect to Redis
	redisClient := redis.NewClient(redisOptions(cfg.RedisURL))
	defer redisClient.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis is not reachable yet", zap.Error(err))
	}
	cancelPing()

	// Connect to Kafka
	publisher := events.NewKafkaPublisher(cfg.KafkaBrokers)
	defer publisher.Close()

	payments := payment.NewService(gw, txid.NewGenerator(), publisher, cfg.SuccessRedirectURL, cfg.CallbackBaseURL, logger)
	reconciler := reconcile.NewReconciler(gw, publisher, reconcile.Policy{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollMaxAttempts,
		MaxDuration: cfg.PollMaxDuration,
	}, logger)
	notifier, err := fulfillment.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom, cfg.SMTPTimeout)
	if err != nil {
		logger.Fatal("Invalid SMTP configuration", zap.Error(err))
	}
	dispatcher := fulfillment.NewDispatcher(
		fulfillment.NewSheetRecordStore(&http.Client{Timeout: cfg.RecordStoreTimeout}, cfg.RecordStoreURL),
		notifier,
		publisher,
		logger,
	)

	// The lock must outlive the slowest callback: a full poll budget, every
	// record attempt timing out, then the email.
	lockTTL := repository.LockTTLFor(cfg.PollMaxDuration + fulfillment.RecordAttempts*cfg.RecordStoreTimeout + cfg.SMTPTimeout)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(api.Dependencies{
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Redirects: handlers.Redirects{
			Success: cfg.SuccessRedirectURL,
			Failure: cfg.FailureRedirectURL,
		},
		Payments:     payments,
		Reconciler:   reconciler,
		Fulfiller:    dispatcher,
		Fulfillments: repository.NewFulfillmentRepository(redisClient, lockTTL),
		Verifier:     gw,
		RateLimiter:  limiter,
		Logger:       logger,
	})

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Checkout service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Sweep()
			case <-sweepDone:
				return
			}
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(sweepDone)

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.PollMaxDuration+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// redisOptions accepts either a redis:// URL or a bare host:port.
func redisOptions(url string) *redis.Options {
	if opts, err := redis.ParseURL(url); err == nil {
		return opts
	}
	return &redis.Options{Addr: url}
}
