package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/interfaces"
)

// FulfillmentIdempotency answers a repeated callback for a transaction that
// has already been fulfilled without dispatching the order again.
func FulfillmentIdempotency(repo interfaces.FulfillmentRepository, successURL string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		transactionID := c.Param("transactionId")
		if transactionID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Transaction ID is required"})
			return
		}

		done, err := repo.IsFulfilled(c.Request.Context(), transactionID)
		if err != nil {
			logger.Warn("Fulfillment lookup failed",
				zap.String("transaction_id", transactionID),
				zap.Error(err),
			)
		}
		if err == nil && done {
			logger.Info("Order already fulfilled", zap.String("transaction_id", transactionID))
			c.AbortWithStatusJSON(http.StatusOK, gin.H{"status": "success", "redirectUrl": successURL})
			return
		}

		c.Set("transaction_id", transactionID)
		c.Next()
	}
}
