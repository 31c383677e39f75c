package gateway

import "github.com/akylbek/payment-system/checkout-service/internal/models"

var codeStatus = map[string]models.Status{
	"PAYMENT_SUCCESS":       models.StatusSuccess,
	"PAYMENT_PENDING":       models.StatusPending,
	"INTERNAL_SERVER_ERROR": models.StatusPending,
	"PAYMENT_ERROR":         models.StatusFailed,
	"PAYMENT_DECLINED":      models.StatusFailed,
	"PAYMENT_CANCELLED":     models.StatusFailed,
	"TIMED_OUT":             models.StatusFailed,
}

var stateStatus = map[string]models.Status{
	"COMPLETED": models.StatusSuccess,
	"PENDING":   models.StatusPending,
	"FAILED":    models.StatusFailed,
}

// mapStatus translates the gateway's code, falling back to data.state.
func mapStatus(code, state string) (models.Status, bool) {
	if s, ok := codeStatus[code]; ok {
		return s, true
	}
	s, ok := stateStatus[state]
	return s, ok
}
