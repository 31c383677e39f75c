package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishKeysByTransaction(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}

	err := p.Publish(context.Background(), TopicOrderFulfilled, "T42", OrderFulfilled{TransactionID: "T42", Items: 3})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, TopicOrderFulfilled, w.msgs[0].Topic)
	assert.Equal(t, "T42", string(w.msgs[0].Key))

	var got OrderFulfilled
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, 3, got.Items)
}

func TestPublishWrapsWriterError(t *testing.T) {
	p := &KafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}}

	err := p.Publish(context.Background(), TopicPaymentInitiated, "T1", PaymentInitiated{TransactionID: "T1"})

	assert.ErrorContains(t, err, "payment.initiated")
}
