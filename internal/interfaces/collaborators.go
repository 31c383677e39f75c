package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/checkout-service/internal/gateway"
	"github.com/akylbek/payment-system/checkout-service/internal/models"
)

// PaymentGateway defines the contract for the hosted-checkout gateway
type PaymentGateway interface {
	Initiate(ctx context.Context, req gateway.InitiateRequest) (string, error)
	CheckStatus(ctx context.Context, transactionID string) (models.Status, error)
}

// NotificationVerifier authenticates gateway-pushed callbacks
type NotificationVerifier interface {
	VerifyNotification(response, signature string) (*gateway.Notification, error)
}

// RecordStore accepts one flat order row per cart item
type RecordStore interface {
	Submit(ctx context.Context, record models.Record) error
}

type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EventPublisher emits domain events keyed by transaction id
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// FulfillmentRepository guards against fulfilling one transaction twice
type FulfillmentRepository interface {
	Acquire(ctx context.Context, transactionID string) (bool, error)
	Release(ctx context.Context, transactionID string) error
	MarkFulfilled(ctx context.Context, transactionID string) error
	IsFulfilled(ctx context.Context, transactionID string) (bool, error)
}
