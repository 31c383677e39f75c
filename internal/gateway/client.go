// Package gateway talks to the hosted-checkout payment gateway: it starts
// payment sessions, queries transaction status and authenticates the
// notifications the gateway pushes back.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-service/internal/checksum"
	"github.com/akylbek/payment-system/checkout-service/internal/models"
	"github.com/akylbek/payment-system/checkout-service/internal/telemetry"
	"github.com/akylbek/payment-system/checkout-service/internal/txid"
)

const (
	PayRoute    = "/pg/v1/pay"
	statusRoute = "/pg/v1/status"

	redirectModePost = "POST"
	instrumentPage   = "PAY_PAGE"
)

type Client struct {
	httpClient *http.Client
	signer     *checksum.Engine
	baseURL    string
	merchantID string
	timeout    time.Duration
	logger     *zap.Logger
}

func NewClient(httpClient *http.Client, signer *checksum.Engine, baseURL, merchantID string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		signer:     signer,
		baseURL:    baseURL,
		merchantID: merchantID,
		timeout:    timeout,
		logger:     logger,
	}
}

type InitiateRequest struct {
	TransactionID string
	Amount        int64
	RedirectURL   string
	CallbackURL   string
}

type payRequest struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl"`
	PaymentInstrument     paymentInstrument `json:"paymentInstrument"`
}

type paymentInstrument struct {
	Type string `json:"type"`
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type statusData struct {
	MerchantTransactionID string `json:"merchantTransactionId"`
	State                 string `json:"state"`
	ResponseCode          string `json:"responseCode"`
}

// EncodePayRequest renders the signed body of an initiation call: the
// base64 of the canonical JSON request.
func (c *Client) EncodePayRequest(req InitiateRequest) (string, error) {
	body, err := json.Marshal(payRequest{
		MerchantID:            c.merchantID,
		MerchantTransactionID: req.TransactionID,
		MerchantUserID:        txid.UserID(req.TransactionID),
		Amount:                req.Amount,
		RedirectURL:           req.RedirectURL,
		RedirectMode:          redirectModePost,
		CallbackURL:           req.CallbackURL,
		PaymentInstrument:     paymentInstrument{Type: instrumentPage},
	})
	if err != nil {
		return "", fmt.Errorf("json.Marshal: %w", err)
	}
	return base64.StdEncoding.EncodeToString(body), nil
}

// Initiate opens a hosted-checkout session and returns the URL the
// customer's browser must be sent to.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (string, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "gateway.initiate")
	defer span.End()
	span.SetAttributes(attribute.String("transaction_id", req.TransactionID))

	payload, err := c.EncodePayRequest(req)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(map[string]string{"request": payload})
	if err != nil {
		return "", fmt.Errorf("json.Marshal: %w", err)
	}

	headers := http.Header{}
	headers.Set("X-VERIFY", c.signer.Sign([]byte(payload), PayRoute))

	statusCode, env, err := c.do(ctx, "initiate", http.MethodPost, PayRoute, headers, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initiate failed")
		return "", err
	}

	if statusCode < 200 || statusCode > 299 || !env.Success {
		err := &Error{Op: "initiate", StatusCode: statusCode, Code: env.Code, Message: env.Message}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	url, err := ExtractRedirectURL(env.Data)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", &Error{Op: "initiate", StatusCode: statusCode, Code: env.Code, Err: err}
	}
	return url, nil
}

// CheckStatus asks the gateway for the current state of a transaction.
func (c *Client) CheckStatus(ctx context.Context, transactionID string) (models.Status, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "gateway.status")
	defer span.End()
	span.SetAttributes(attribute.String("transaction_id", transactionID))

	route := fmt.Sprintf("%s/%s/%s", statusRoute, c.merchantID, transactionID)

	headers := http.Header{}
	headers.Set("X-VERIFY", c.signer.Sign(nil, route))
	headers.Set("X-MERCHANT-ID", c.merchantID)

	statusCode, env, err := c.do(ctx, "status", http.MethodGet, route, headers, nil)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	var data statusData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			c.logger.Warn("Unparseable status data",
				zap.String("transaction_id", transactionID),
				zap.String("code", env.Code),
				zap.Error(err),
			)
		}
	}
	if data.MerchantTransactionID != "" && data.MerchantTransactionID != transactionID {
		err := &Error{Op: "status", StatusCode: statusCode, Code: env.Code, Err: ErrTransactionMismatch}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	status, ok := mapStatus(env.Code, data.State)
	if !ok {
		err := &Error{Op: "status", StatusCode: statusCode, Code: env.Code, Message: env.Message, Err: ErrUnknownStatus}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("status", string(status)))
	return status, nil
}

// Notification is a decoded, authenticated server-to-server callback.
type Notification struct {
	TransactionID string
	Status        models.Status
	Code          string
}

// VerifyNotification authenticates a pushed callback whose base64
// "response" field is signed with the X-VERIFY scheme and no route suffix.
func (c *Client) VerifyNotification(response, signature string) (*Notification, error) {
	if err := c.signer.Verify([]byte(response), "", signature); err != nil {
		return nil, err
	}

	decoded, err := base64.StdEncoding.DecodeString(response)
	if err != nil {
		return nil, fmt.Errorf("base64 decode notification: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(decoded, &env); err != nil {
		return nil, fmt.Errorf("json.Unmarshal notification: %w", err)
	}
	var data statusData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("json.Unmarshal notification data: %w", err)
		}
	}

	status, ok := mapStatus(env.Code, data.State)
	if !ok {
		status = models.StatusPending
	}
	return &Notification{
		TransactionID: data.MerchantTransactionID,
		Status:        status,
		Code:          env.Code,
	}, nil
}

func (c *Client) do(ctx context.Context, op, method, route string, headers http.Header, body []byte) (int, envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+route, reader)
	if err != nil {
		return 0, envelope{}, fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header = headers
	req.Header.Set("accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	telemetry.GatewayRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		if isTimeout(err) {
			return 0, envelope{}, &Error{Op: op, Err: ErrTimeout}
		}
		return 0, envelope{}, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return 0, envelope{}, &Error{Op: op, StatusCode: resp.StatusCode, Err: ErrTimeout}
		}
		return 0, envelope{}, &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("io.ReadAll: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn("Unparseable gateway response",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode),
		)
		return resp.StatusCode, envelope{}, &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("json.Unmarshal: %w", err)}
	}
	return resp.StatusCode, env, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
