package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicPaymentInitiated     = "payment.initiated"
	TopicPaymentStatusChanged = "payment.status.changed"
	TopicOrderFulfilled       = "order.fulfilled"
)

type PaymentInitiated struct {
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type PaymentStatusChanged struct {
	TransactionID string    `json:"transaction_id"`
	State         string    `json:"state"`
	PreviousState string    `json:"previous_state"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

type OrderFulfilled struct {
	TransactionID string    `json:"transaction_id"`
	Items         int       `json:"items"`
	Timestamp     time.Time `json:"timestamp"`
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher returns a publisher whose writer routes each message by
// its own topic.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
