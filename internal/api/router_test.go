package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/gateway"
	"github.com/akylbek/payment-system/checkout-service/internal/handlers"
	"github.com/akylbek/payment-system/checkout-service/internal/middleware"
	"github.com/akylbek/payment-system/checkout-service/internal/models"
	"github.com/akylbek/payment-system/checkout-service/internal/payment"
	"github.com/akylbek/payment-system/checkout-service/internal/reconcile"
)

type stubPayments struct{}

func (stubPayments) Initiate(context.Context, json.RawMessage) (*payment.Result, error) {
	return &payment.Result{TransactionID: "T1", Amount: 100, RedirectURL: "https://pay.test/T1"}, nil
}

type stubReconciler struct{}

func (stubReconciler) Reconcile(_ context.Context, id string) (reconcile.Outcome, error) {
	return reconcile.Outcome{TransactionID: id, Status: models.StatusSuccess, Attempts: 1}, nil
}

type stubFulfiller struct{ calls int }

func (s *stubFulfiller) Fulfill(context.Context, models.Order) error {
	s.calls++
	return nil
}

type stubRepo struct {
	fulfilled map[string]bool
	locked    map[string]bool

	// afterFirstCheck runs once, after the first IsFulfilled read and
	// before its result is returned.
	afterFirstCheck func()
}

func newStubRepo() *stubRepo {
	return &stubRepo{fulfilled: map[string]bool{}, locked: map[string]bool{}}
}

func (s *stubRepo) Acquire(_ context.Context, id string) (bool, error) {
	if s.locked[id] {
		return false, nil
	}
	s.locked[id] = true
	return true, nil
}

func (s *stubRepo) Release(_ context.Context, id string) error {
	delete(s.locked, id)
	return nil
}

func (s *stubRepo) MarkFulfilled(_ context.Context, id string) error {
	s.fulfilled[id] = true
	return nil
}

func (s *stubRepo) IsFulfilled(_ context.Context, id string) (bool, error) {
	done := s.fulfilled[id]
	if hook := s.afterFirstCheck; hook != nil {
		s.afterFirstCheck = nil
		hook()
	}
	return done, nil
}

type stubVerifier struct{}

func (stubVerifier) VerifyNotification(string, string) (*gateway.Notification, error) {
	return nil, nil
}

func newTestRouter(fulfiller *stubFulfiller, repo *stubRepo, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(Dependencies{
		ServiceName:    "checkout-service",
		AllowedOrigins: []string{"https://shop.test"},
		Redirects:      handlers.Redirects{Success: "https://shop.test/success", Failure: "https://shop.test/failure"},
		Payments:       stubPayments{},
		Reconciler:     stubReconciler{},
		Fulfiller:      fulfiller,
		Fulfillments:   repo,
		Verifier:       stubVerifier{},
		RateLimiter:    middleware.NewRateLimiter(1, burst),
		Logger:         zap.NewNop(),
	})
}

const orderBody = `{"formData":{"name":"A","email":"a@example.com","phoneNumber":"1","address":"x","city":"y","zip":"z"},
"cartProducts":[{"productId":"p1","productName":"Tea","quantity":1}]}`

func TestHealth(t *testing.T) {
	r := newTestRouter(&stubFulfiller{}, newStubRepo(), 10)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "checkout-service")
}

func postOrder(r http.Handler, transactionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/callback/"+transactionID, strings.NewReader(orderBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCallbackReplayIsNotFulfilledTwice(t *testing.T) {
	fulfiller := &stubFulfiller{}
	repo := newStubRepo()
	r := newTestRouter(fulfiller, repo, 10)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, postOrder(r, "T1").Code)
	}

	assert.Equal(t, 1, fulfiller.calls)
	assert.True(t, repo.fulfilled["T1"])
}

func TestCallbackFulfilledWhileWaitingForLock(t *testing.T) {
	fulfiller := &stubFulfiller{}
	repo := newStubRepo()
	r := newTestRouter(fulfiller, repo, 10)

	// The first delivery passes the idempotency check; a second delivery
	// then runs to completion before the first one takes the lock.
	var other *httptest.ResponseRecorder
	repo.afterFirstCheck = func() {
		other = postOrder(r, "T1")
	}

	w := postOrder(r, "T1")

	require.NotNil(t, other)
	assert.Equal(t, http.StatusOK, other.Code)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, fulfiller.calls)
	assert.Empty(t, repo.locked)
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(&stubFulfiller{}, newStubRepo(), 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payment", strings.NewReader(`{"price":1}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(&stubFulfiller{}, newStubRepo(), 10)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/payment", nil)
	req.Header.Set("Origin", "https://shop.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.test", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWithoutAllowList(t *testing.T) {
	cfg := corsConfig(nil)

	assert.True(t, cfg.AllowAllOrigins)
	assert.False(t, cfg.AllowCredentials)
	assert.NoError(t, cfg.Validate())
}
