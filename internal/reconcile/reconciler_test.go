package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/events"
	"github.com/akylbek/payment-system/checkout-service/internal/gateway"
	"github.com/akylbek/payment-system/checkout-service/internal/models"
)

type step struct {
	status models.Status
	err    error
}

// scriptedGateway answers status checks from a script; once the script is
// exhausted it keeps answering PENDING.
type scriptedGateway struct {
	mu     sync.Mutex
	script []step
	calls  []time.Time
}

func (g *scriptedGateway) Initiate(context.Context, gateway.InitiateRequest) (string, error) {
	return "", errors.New("not used")
}

func (g *scriptedGateway) CheckStatus(context.Context, string) (models.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, time.Now())
	if len(g.script) == 0 {
		return models.StatusPending, nil
	}
	next := g.script[0]
	g.script = g.script[1:]
	return next.status, next.err
}

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _ string, _ any) error {
	p.topics = append(p.topics, topic)
	return nil
}

func fastPolicy(attempts int) Policy {
	return Policy{Interval: 10 * time.Millisecond, MaxAttempts: attempts, MaxDuration: 5 * time.Second}
}

func TestReconcileRetriesPendingUntilTerminal(t *testing.T) {
	gw := &scriptedGateway{script: []step{
		{status: models.StatusPending},
		{status: models.StatusPending},
		{status: models.StatusSuccess},
		{status: models.StatusFailed},
	}}
	pub := &recordingPublisher{}

	out, err := NewReconciler(gw, pub, fastPolicy(10), zap.NewNop()).Reconcile(context.Background(), "T1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, out.Status)
	assert.Equal(t, 3, out.Attempts)
	require.Len(t, gw.calls, 3)
	for i := 1; i < len(gw.calls); i++ {
		assert.GreaterOrEqual(t, gw.calls[i].Sub(gw.calls[i-1]), 10*time.Millisecond)
	}
	assert.Equal(t, []string{events.TopicPaymentStatusChanged}, pub.topics)
}

func TestReconcileStopsOnFirstFailure(t *testing.T) {
	gw := &scriptedGateway{script: []step{{status: models.StatusFailed}}}

	out, err := NewReconciler(gw, &recordingPublisher{}, fastPolicy(10), zap.NewNop()).Reconcile(context.Background(), "T2")
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, out.Status)
	assert.Len(t, gw.calls, 1)
}

func TestReconcileRetriesTransientErrors(t *testing.T) {
	gw := &scriptedGateway{script: []step{
		{err: &gateway.Error{Op: "status", Err: gateway.ErrTimeout}},
		{status: models.StatusSuccess},
	}}

	out, err := NewReconciler(gw, &recordingPublisher{}, fastPolicy(5), zap.NewNop()).Reconcile(context.Background(), "T3")
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, out.Status)
	assert.Equal(t, 2, out.Attempts)
}

func TestReconcileUnresolvedAfterMaxAttempts(t *testing.T) {
	gw := &scriptedGateway{}
	pub := &recordingPublisher{}

	out, err := NewReconciler(gw, pub, fastPolicy(4), zap.NewNop()).Reconcile(context.Background(), "T4")
	require.NoError(t, err)

	assert.Equal(t, models.StatusUnresolved, out.Status)
	assert.Equal(t, 4, out.Attempts)
	assert.Len(t, gw.calls, 4)
	assert.Empty(t, pub.topics)
}

func TestReconcileUnresolvedAfterMaxDuration(t *testing.T) {
	gw := &scriptedGateway{}
	policy := Policy{Interval: 20 * time.Millisecond, MaxAttempts: 1000, MaxDuration: 100 * time.Millisecond}

	start := time.Now()
	out, err := NewReconciler(gw, &recordingPublisher{}, policy, zap.NewNop()).Reconcile(context.Background(), "T5")
	require.NoError(t, err)

	assert.Equal(t, models.StatusUnresolved, out.Status)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Less(t, out.Attempts, 1000)
}

func TestReconcileHonoursCallerCancellation(t *testing.T) {
	gw := &scriptedGateway{}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := NewReconciler(gw, &recordingPublisher{}, fastPolicy(1000), zap.NewNop()).Reconcile(ctx, "T6")

	assert.ErrorIs(t, err, context.Canceled)
}
