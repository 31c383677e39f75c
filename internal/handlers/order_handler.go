package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/fulfillment"
	"github.com/akylbek/payment-system/checkout-service/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-service/internal/models"
	"github.com/akylbek/payment-system/checkout-service/internal/reconcile"
)

const markAttempts = 3

type StatusReconciler interface {
	Reconcile(ctx context.Context, transactionID string) (reconcile.Outcome, error)
}

type OrderFulfiller interface {
	Fulfill(ctx context.Context, order models.Order) error
}

type OrderHandler struct {
	reconciler    StatusReconciler
	fulfiller     OrderFulfiller
	repo          interfaces.FulfillmentRepository
	verifier      interfaces.NotificationVerifier
	redirects     Redirects
	logger        *zap.Logger
	markRetryWait time.Duration
}

func NewOrderHandler(
	reconciler StatusReconciler,
	fulfiller OrderFulfiller,
	repo interfaces.FulfillmentRepository,
	verifier interfaces.NotificationVerifier,
	redirects Redirects,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		reconciler:    reconciler,
		fulfiller:     fulfiller,
		repo:          repo,
		verifier:      verifier,
		redirects:     redirects,
		logger:        logger,
		markRetryWait: 200 * time.Millisecond,
	}
}

// Callback serves both deliveries that share the callback URL: the
// gateway's signed notification (X-VERIFY set) and the storefront's order
// post. Neither body is taken as proof of payment; status is always
// re-queried.
func (h *OrderHandler) Callback(c *gin.Context) {
	if signature := c.GetHeader("X-VERIFY"); signature != "" {
		h.gatewayNotification(c, signature)
		return
	}
	h.fulfillOrder(c)
}

func (h *OrderHandler) gatewayNotification(c *gin.Context, signature string) {
	ctx := c.Request.Context()
	transactionID := c.Param("transactionId")
	logger := h.logger.With(zap.String("transaction_id", transactionID), zap.String("stage", "notification"))

	var req models.GatewayNotification
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid gateway notification", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid notification body"})
		return
	}

	n, err := h.verifier.VerifyNotification(req.Response, signature)
	if err != nil || n == nil || n.TransactionID != transactionID {
		logger.Warn("Rejected notification with bad signature", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Invalid callback signature"})
		return
	}

	outcome, err := h.reconciler.Reconcile(ctx, transactionID)
	if err != nil {
		logger.Warn("Reconciliation aborted", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "Request cancelled before payment status was confirmed"})
		return
	}

	logger.Info("Gateway notification acknowledged",
		zap.String("reported", string(n.Status)),
		zap.String("confirmed", string(outcome.Status)),
	)
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Notification acknowledged",
		"data": gin.H{
			"transactionId": transactionID,
			"state":         outcome.Status,
		},
	})
}

func (h *OrderHandler) fulfillOrder(c *gin.Context) {
	ctx := c.Request.Context()
	transactionID := c.Param("transactionId")
	logger := h.logger.With(zap.String("transaction_id", transactionID))

	var req models.OrderCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid callback body", zap.String("stage", "callback"), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing or invalid order details"})
		return
	}

	acquired, err := h.repo.Acquire(ctx, transactionID)
	if err != nil {
		logger.Error("Failed to acquire fulfillment lock", zap.String("stage", "lock"), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "Service temporarily unavailable"})
		return
	}
	if !acquired {
		c.JSON(http.StatusConflict, gin.H{"status": "error", "message": "Order is already being processed"})
		return
	}
	defer func() {
		if err := h.repo.Release(context.WithoutCancel(ctx), transactionID); err != nil {
			logger.Warn("Failed to release fulfillment lock", zap.Error(err))
		}
	}()

	// A delivery that finished between the idempotency check and the lock.
	done, err := h.repo.IsFulfilled(ctx, transactionID)
	if err != nil {
		logger.Error("Fulfillment lookup failed", zap.String("stage", "lock"), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "Service temporarily unavailable"})
		return
	}
	if done {
		logger.Info("Order already fulfilled")
		c.JSON(http.StatusOK, gin.H{"status": "success", "redirectUrl": h.redirects.Success})
		return
	}

	outcome, err := h.reconciler.Reconcile(ctx, transactionID)
	if err != nil {
		logger.Warn("Reconciliation aborted", zap.String("stage", "reconcile"), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "Request cancelled before payment status was confirmed"})
		return
	}

	switch outcome.Status {
	case models.StatusSuccess:
	case models.StatusFailed:
		c.JSON(http.StatusBadRequest, gin.H{
			"status":      "error",
			"message":     "Payment was not successful",
			"redirectUrl": h.redirects.Failure,
		})
		return
	default:
		c.JSON(http.StatusAccepted, gin.H{
			"status":        "pending",
			"message":       "Payment status could not be confirmed yet, please check again later",
			"transactionId": transactionID,
		})
		return
	}

	order := models.Order{
		TransactionID: transactionID,
		Customer:      req.FormData,
		Items:         req.CartProducts,
	}
	if err := h.fulfiller.Fulfill(ctx, order); err != nil {
		var fErr *fulfillment.Error
		switch {
		case errors.Is(err, fulfillment.ErrIncompleteOrder):
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing or invalid order details"})
		case errors.As(err, &fErr):
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":        "error",
				"message":       "Payment received but the order could not be recorded",
				"transactionId": transactionID,
				"stage":         fErr.Stage,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":        "error",
				"message":       "Payment received but the order could not be recorded",
				"transactionId": transactionID,
			})
		}
		return
	}

	if err := h.markFulfilled(ctx, transactionID); err != nil {
		logger.Error("Failed to mark order fulfilled, a replay may dispatch it again",
			zap.String("stage", "fulfill"),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "redirectUrl": h.redirects.Success})
}

// markFulfilled retries the marker write outside the request's lifetime;
// the order has already been dispatched.
func (h *OrderHandler) markFulfilled(ctx context.Context, transactionID string) error {
	ctx = context.WithoutCancel(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.markRetryWait
	return backoff.Retry(func() error {
		return h.repo.MarkFulfilled(ctx, transactionID)
	}, backoff.WithMaxRetries(b, markAttempts-1))
}

// Status reports the reconciled state of a transaction.
func (h *OrderHandler) Status(c *gin.Context) {
	transactionID := c.Param("transactionId")

	outcome, err := h.reconciler.Reconcile(c.Request.Context(), transactionID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "Request cancelled before payment status was confirmed"})
		return
	}

	code := http.StatusOK
	if outcome.Status == models.StatusUnresolved {
		code = http.StatusAccepted
	}
	c.JSON(code, gin.H{
		"status": "success",
		"data": gin.H{
			"transactionId": transactionID,
			"state":         outcome.Status,
		},
	})
}
