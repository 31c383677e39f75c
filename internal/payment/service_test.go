package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/events"
	"github.com/akylbek/payment-system/checkout-service/internal/gateway"
	"github.com/akylbek/payment-system/checkout-service/internal/models"
)

type mockGateway struct {
	InitiateFunc func(ctx context.Context, req gateway.InitiateRequest) (string, error)
	calls        []gateway.InitiateRequest
}

func (m *mockGateway) Initiate(ctx context.Context, req gateway.InitiateRequest) (string, error) {
	m.calls = append(m.calls, req)
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, req)
	}
	return "https://pay.test/checkout", nil
}

func (m *mockGateway) CheckStatus(context.Context, string) (models.Status, error) {
	return models.StatusPending, nil
}

type mockPublisher struct {
	topics []string
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, topic, _ string, _ any) error {
	m.topics = append(m.topics, topic)
	return m.err
}

type fixedIDs string

func (f fixedIDs) Next() string { return string(f) }

func newService(gw *mockGateway, pub *mockPublisher) *Service {
	return NewService(gw, fixedIDs("T100"), pub, "https://shop.test/success", "https://shop.test/api/v1/orders/callback", zap.NewNop())
}

func TestInitiate(t *testing.T) {
	gw := &mockGateway{}
	pub := &mockPublisher{}

	res, err := newService(gw, pub).Initiate(context.Background(), json.RawMessage(`100.00`))
	require.NoError(t, err)

	assert.Equal(t, "T100", res.TransactionID)
	assert.Equal(t, int64(10000), res.Amount)
	assert.Equal(t, "https://pay.test/checkout", res.RedirectURL)

	require.Len(t, gw.calls, 1)
	assert.Equal(t, gateway.InitiateRequest{
		TransactionID: "T100",
		Amount:        10000,
		RedirectURL:   "https://shop.test/success",
		CallbackURL:   "https://shop.test/api/v1/orders/callback/T100",
	}, gw.calls[0])
	assert.Equal(t, []string{events.TopicPaymentInitiated}, pub.topics)
}

func TestInitiateInvalidPriceMakesNoCall(t *testing.T) {
	for _, raw := range []string{``, `null`, `0`, `-5`, `"abc"`, `0.001`} {
		t.Run(raw, func(t *testing.T) {
			gw := &mockGateway{}
			pub := &mockPublisher{}

			_, err := newService(gw, pub).Initiate(context.Background(), json.RawMessage(raw))

			assert.True(t, IsClientError(err))
			assert.Empty(t, gw.calls)
			assert.Empty(t, pub.topics)
		})
	}
}

func TestInitiateGatewayFailure(t *testing.T) {
	gw := &mockGateway{InitiateFunc: func(context.Context, gateway.InitiateRequest) (string, error) {
		return "", &gateway.Error{Op: "initiate", Code: "BAD_REQUEST"}
	}}
	pub := &mockPublisher{}

	_, err := newService(gw, pub).Initiate(context.Background(), json.RawMessage(`10`))

	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.False(t, IsClientError(err))
	assert.Empty(t, pub.topics)
}

func TestInitiateIgnoresPublishFailure(t *testing.T) {
	pub := &mockPublisher{err: errors.New("kafka unavailable")}

	res, err := newService(&mockGateway{}, pub).Initiate(context.Background(), json.RawMessage(`"5"`))

	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Amount)
}
