package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/events"
	"github.com/akylbek/payment-system/checkout-service/internal/gateway"
	"github.com/akylbek/payment-system/checkout-service/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-service/internal/models"
	"github.com/akylbek/payment-system/checkout-service/internal/telemetry"
)

type IDGenerator interface {
	Next() string
}

type Result struct {
	TransactionID string
	Amount        int64
	RedirectURL   string
}

type Service struct {
	gateway         interfaces.PaymentGateway
	ids             IDGenerator
	publisher       interfaces.EventPublisher
	successURL      string
	callbackBaseURL string
	logger          *zap.Logger
}

func NewService(gw interfaces.PaymentGateway, ids IDGenerator, publisher interfaces.EventPublisher, successURL, callbackBaseURL string, logger *zap.Logger) *Service {
	return &Service{
		gateway:         gw,
		ids:             ids,
		publisher:       publisher,
		successURL:      successURL,
		callbackBaseURL: callbackBaseURL,
		logger:          logger,
	}
}

// Initiate validates the price and opens a hosted-checkout session for it.
// Invalid input is rejected before any transaction id is minted or any
// network call is made.
func (s *Service) Initiate(ctx context.Context, rawPrice json.RawMessage) (*Result, error) {
	price, err := ParsePrice(rawPrice)
	if err != nil {
		telemetry.PaymentsInitiated.WithLabelValues("client_error").Inc()
		return nil, err
	}
	amount, err := MinorUnits(price)
	if err != nil {
		telemetry.PaymentsInitiated.WithLabelValues("client_error").Inc()
		return nil, err
	}

	tx := models.NewTransaction(s.ids.Next(), amount)
	logger := s.logger.With(zap.String("transaction_id", tx.ID), zap.String("stage", "initiate"))

	logger.Info("Creating payment",
		zap.String("price", price.String()),
		zap.Int64("amount", amount),
	)

	redirectURL, err := s.gateway.Initiate(ctx, gateway.InitiateRequest{
		TransactionID: tx.ID,
		Amount:        amount,
		RedirectURL:   s.successURL,
		CallbackURL:   fmt.Sprintf("%s/%s", s.callbackBaseURL, tx.ID),
	})
	if err != nil {
		telemetry.PaymentsInitiated.WithLabelValues("gateway_error").Inc()
		logger.Error("Payment initialization failed", zap.Error(err))
		return nil, fmt.Errorf("initiate %s: %w", tx.ID, err)
	}

	if err := tx.Transition(models.StatusPending); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, events.TopicPaymentInitiated, tx.ID, events.PaymentInitiated{
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Status:        string(tx.Status),
		CreatedAt:     tx.CreatedAt,
	}); err != nil {
		logger.Error("Failed to publish payment event", zap.Error(err))
	}

	telemetry.PaymentsInitiated.WithLabelValues("success").Inc()
	logger.Info("Payment created successfully", zap.Duration("elapsed", time.Since(tx.CreatedAt)))

	return &Result{
		TransactionID: tx.ID,
		Amount:        amount,
		RedirectURL:   redirectURL,
	}, nil
}
