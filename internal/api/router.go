package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/handlers"
	"github.com/akylbek/payment-system/checkout-service/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-service/internal/middleware"
	"github.com/akylbek/payment-system/checkout-service/internal/telemetry"
)

type Dependencies struct {
	ServiceName    string
	AllowedOrigins []string
	Redirects      handlers.Redirects

	Payments     handlers.PaymentInitiator
	Reconciler   handlers.StatusReconciler
	Fulfiller    handlers.OrderFulfiller
	Fulfillments interfaces.FulfillmentRepository
	Verifier     interfaces.NotificationVerifier
	RateLimiter  *middleware.RateLimiter
	Logger       *zap.Logger
}

func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())
	r.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": deps.ServiceName})
	})

	paymentHandler := handlers.NewPaymentHandler(deps.Payments, deps.Redirects, deps.Logger)
	orderHandler := handlers.NewOrderHandler(deps.Reconciler, deps.Fulfiller, deps.Fulfillments, deps.Verifier, deps.Redirects, deps.Logger)

	v1 := r.Group("/api/v1")
	v1.Use(deps.RateLimiter.Middleware())
	{
		v1.POST("/payment", paymentHandler.CreatePayment)

		orders := v1.Group("/orders")
		orders.POST("/callback/:transactionId",
			middleware.FulfillmentIdempotency(deps.Fulfillments, deps.Redirects.Success, deps.Logger),
			orderHandler.Callback,
		)
		orders.POST("/status/:transactionId", orderHandler.Status)
	}

	return r
}

// corsConfig allows any origin, without credentials, when no allow-list is set.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "X-VERIFY", "X-MERCHANT-ID"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
