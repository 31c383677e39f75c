// Package reconcile settles a transaction's outcome by polling the gateway
// within a bounded budget.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/events"
	"github.com/akylbek/payment-system/checkout-service/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-service/internal/models"
	"github.com/akylbek/payment-system/checkout-service/internal/telemetry"
)

var errPending = errors.New("payment pending")

// Policy bounds the poll loop. A transaction still pending after
// MaxAttempts queries or MaxDuration is reported as UNRESOLVED.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
	MaxDuration time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Interval:    5 * time.Second,
		MaxAttempts: 12,
		MaxDuration: time.Minute,
	}
}

type Outcome struct {
	TransactionID string
	Status        models.Status
	Attempts      int
}

type Reconciler struct {
	gateway   interfaces.PaymentGateway
	publisher interfaces.EventPublisher
	policy    Policy
	logger    *zap.Logger
}

func NewReconciler(gw interfaces.PaymentGateway, publisher interfaces.EventPublisher, policy Policy, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		gateway:   gw,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
	}
}

// Reconcile queries the gateway until it reports SUCCESS or FAILED. PENDING
// answers and transient gateway errors are retried at a fixed interval.
// When the budget runs out the outcome is UNRESOLVED with a nil error; an
// error is returned only if ctx itself is cancelled.
func (r *Reconciler) Reconcile(ctx context.Context, transactionID string) (Outcome, error) {
	logger := r.logger.With(zap.String("transaction_id", transactionID), zap.String("stage", "reconcile"))

	pollCtx, cancel := context.WithTimeout(ctx, r.policy.MaxDuration)
	defer cancel()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.policy.Interval), uint64(r.policy.MaxAttempts-1)),
		pollCtx,
	)

	outcome := Outcome{TransactionID: transactionID, Status: models.StatusPending}

	check := func() error {
		outcome.Attempts++
		telemetry.PollAttempts.Inc()

		status, err := r.gateway.CheckStatus(pollCtx, transactionID)
		if err != nil {
			return err
		}
		outcome.Status = status
		if !status.IsTerminal() {
			return errPending
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		if errors.Is(err, errPending) {
			logger.Info("Payment still pending",
				zap.Int("attempt", outcome.Attempts),
				zap.Duration("next_check", next),
			)
			return
		}
		logger.Warn("Status check failed, retrying",
			zap.Int("attempt", outcome.Attempts),
			zap.Duration("next_check", next),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(check, policy, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		telemetry.Reconciliations.WithLabelValues(string(models.StatusUnresolved)).Inc()
		logger.Warn("Payment status unresolved",
			zap.Int("attempts", outcome.Attempts),
			zap.Error(err),
		)
		outcome.Status = models.StatusUnresolved
		return outcome, nil
	}

	telemetry.Reconciliations.WithLabelValues(string(outcome.Status)).Inc()
	logger.Info("Payment status settled",
		zap.String("status", string(outcome.Status)),
		zap.Int("attempts", outcome.Attempts),
	)

	if err := r.publisher.Publish(ctx, events.TopicPaymentStatusChanged, transactionID, events.PaymentStatusChanged{
		TransactionID: transactionID,
		State:         string(outcome.Status),
		PreviousState: string(models.StatusPending),
		Source:        "gateway_status",
		Timestamp:     time.Now(),
	}); err != nil {
		logger.Error("Failed to publish status event", zap.Error(err))
	}

	return outcome, nil
}
