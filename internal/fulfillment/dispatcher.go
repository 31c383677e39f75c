// Package fulfillment records a paid order with the record store and
// notifies the customer.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/events"
	"github.com/akylbek/payment-system/checkout-service/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-service/internal/models"
	"github.com/akylbek/payment-system/checkout-service/internal/telemetry"
)

const (
	StageRecord = "record"
	StageNotify = "notify"
)

var ErrIncompleteOrder = errors.New("incomplete order")

// Error is a failure after the payment itself has succeeded.
type Error struct {
	TransactionID string
	Stage         string
	Err           error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fulfillment of %s failed at %s: %v", e.TransactionID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Dispatcher struct {
	records   interfaces.RecordStore
	notifier  interfaces.Notifier
	publisher interfaces.EventPublisher
	logger    *zap.Logger
}

func NewDispatcher(records interfaces.RecordStore, notifier interfaces.Notifier, publisher interfaces.EventPublisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		records:   records,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
	}
}

// Validate checks that an order carries everything fulfillment needs.
func Validate(order models.Order) error {
	if missing := order.Customer.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing customer %s", ErrIncompleteOrder, strings.Join(missing, ", "))
	}
	if len(order.Items) == 0 {
		return fmt.Errorf("%w: no cart items", ErrIncompleteOrder)
	}
	for i, item := range order.Items {
		if item.ProductID == "" || item.ProductName == "" || item.Quantity <= 0 {
			return fmt.Errorf("%w: cart item %d is invalid", ErrIncompleteOrder, i)
		}
	}
	return nil
}

// Fulfill submits one record per cart item concurrently and, only if every
// submission succeeded, sends a single confirmation email.
func (d *Dispatcher) Fulfill(ctx context.Context, order models.Order) error {
	if err := Validate(order); err != nil {
		return err
	}
	logger := d.logger.With(zap.String("transaction_id", order.TransactionID))

	records := order.Records()
	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for i, record := range records {
		wg.Add(1)
		go func(i int, record models.Record) {
			defer wg.Done()
			if err := d.records.Submit(ctx, record); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("item %d (%s): %w", i+1, record.ProductID, err))
				mu.Unlock()
			}
		}(i, record)
	}
	wg.Wait()

	if errs != nil {
		telemetry.Fulfillments.WithLabelValues("record_error").Inc()
		logger.Error("Failed to record order",
			zap.String("stage", StageRecord),
			zap.Int("items", len(records)),
			zap.Int("failed", len(multierr.Errors(errs))),
			zap.Error(errs),
		)
		return &Error{TransactionID: order.TransactionID, Stage: StageRecord, Err: errs}
	}

	subject, body := confirmationEmail(order)
	if err := d.notifier.Send(ctx, order.Customer.Email, subject, body); err != nil {
		telemetry.Fulfillments.WithLabelValues("notify_error").Inc()
		logger.Error("Failed to send confirmation email",
			zap.String("stage", StageNotify),
			zap.Error(err),
		)
		return &Error{TransactionID: order.TransactionID, Stage: StageNotify, Err: err}
	}

	telemetry.Fulfillments.WithLabelValues("success").Inc()
	logger.Info("Order fulfilled", zap.Int("items", len(records)))

	if err := d.publisher.Publish(ctx, events.TopicOrderFulfilled, order.TransactionID, events.OrderFulfilled{
		TransactionID: order.TransactionID,
		Items:         len(records),
		Timestamp:     time.Now(),
	}); err != nil {
		logger.Error("Failed to publish fulfillment event", zap.Error(err))
	}
	return nil
}

func confirmationEmail(order models.Order) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", order.Customer.Name)
	fmt.Fprintf(&b, "Thank you for your order. Your transaction ID is %s.\n\n", order.TransactionID)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "  %d x %s\n", item.Quantity, item.ProductName)
	}
	fmt.Fprintf(&b, "\nWe will deliver to %s, %s %s.\n", order.Customer.Address, order.Customer.City, order.Customer.Zip)
	return "Order confirmation " + order.TransactionID, b.String()
}
