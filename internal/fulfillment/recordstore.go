package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/akylbek/payment-system/checkout-service/internal/models"
)

// RecordAttempts is how many times one record is posted before giving up.
const RecordAttempts = 3

// SheetRecordStore posts order rows to a spreadsheet-backed REST endpoint.
type SheetRecordStore struct {
	httpClient *http.Client
	url        string
	retryWait  time.Duration
}

func NewSheetRecordStore(httpClient *http.Client, url string) *SheetRecordStore {
	return &SheetRecordStore{httpClient: httpClient, url: url, retryWait: 200 * time.Millisecond}
}

// Submit posts one record, retrying transport errors and 5xx responses
// with exponential backoff.
func (s *SheetRecordStore) Submit(ctx context.Context, record models.Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryWait
	policy := backoff.WithContext(backoff.WithMaxRetries(b, RecordAttempts-1), ctx)

	return backoff.Retry(func() error {
		return s.post(ctx, body)
	}, policy)
}

func (s *SheetRecordStore) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("http.NewRequestWithContext: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpClient.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("record store returned status %d: %s", resp.StatusCode, string(respBody))
	if resp.StatusCode >= http.StatusInternalServerError {
		return err
	}
	return backoff.Permanent(err)
}
