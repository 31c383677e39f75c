package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/gateway"
	"github.com/akylbek/payment-system/checkout-service/internal/models"
	"github.com/akylbek/payment-system/checkout-service/internal/payment"
)

type PaymentInitiator interface {
	Initiate(ctx context.Context, rawPrice json.RawMessage) (*payment.Result, error)
}

// Redirects are the browser destinations handed back to the storefront.
type Redirects struct {
	Success string
	Failure string
}

type PaymentHandler struct {
	payments  PaymentInitiator
	redirects Redirects
	logger    *zap.Logger
}

func NewPaymentHandler(payments PaymentInitiator, redirects Redirects, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:  payments,
		redirects: redirects,
		logger:    logger,
	}
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx := c.Request.Context()
	span := trace.SpanFromContext(ctx)

	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid payment request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request body"})
		return
	}

	result, err := h.payments.Initiate(ctx, req.Price)
	switch {
	case errors.Is(err, payment.ErrPriceRequired):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Price is required"})
		return
	case errors.Is(err, payment.ErrInvalidPrice):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid price value"})
		return
	case gateway.IsTimeout(err):
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"status":      "error",
			"message":     "Payment gateway timed out, please try again",
			"redirectUrl": h.redirects.Failure,
		})
		return
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{
			"status":      "error",
			"message":     "Payment initialization failed",
			"redirectUrl": h.redirects.Failure,
		})
		return
	}

	h.logger.Info("Payment initialized",
		zap.String("transaction_id", result.TransactionID),
		zap.Int64("amount", result.Amount),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Payment initialized successfully",
		"data": gin.H{
			"redirectUrl":   result.RedirectURL,
			"transactionId": result.TransactionID,
		},
	})
}
