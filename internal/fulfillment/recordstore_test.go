package fulfillment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/checkout-service/internal/models"
)

func newStore(srv *httptest.Server) *SheetRecordStore {
	s := NewSheetRecordStore(srv.Client(), srv.URL)
	s.retryWait = time.Millisecond
	return s
}

func TestSubmitPostsFlatRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "T1", got["TransactionId"])
		assert.Equal(t, "p1", got["ProductId"])
		assert.EqualValues(t, 2, got["Quantity"])
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newStore(srv).Submit(context.Background(), models.Record{TransactionID: "T1", ProductID: "p1", Quantity: 2})
	assert.NoError(t, err)
}

func TestSubmitRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newStore(srv).Submit(context.Background(), models.Record{TransactionID: "T1"})

	assert.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSubmitGivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newStore(srv).Submit(context.Background(), models.Record{TransactionID: "T1"})

	assert.ErrorContains(t, err, "status 503")
	assert.Equal(t, int32(RecordAttempts), calls.Load())
}

func TestSubmitDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newStore(srv).Submit(context.Background(), models.Record{TransactionID: "T1"})

	assert.ErrorContains(t, err, "status 400")
	assert.Equal(t, int32(1), calls.Load())
}
