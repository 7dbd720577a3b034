// Package upstream is the HTTP client for the parish-management backend
// API, which owns parish records, subscription plans, and payment
// verification.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/luminouslogics/parishd/internal/draft"
	"github.com/luminouslogics/parishd/internal/plans"
)

// APIError is a non-2xx response from the backend, carrying its status
// code and the message from the response envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream: %d %s", e.StatusCode, e.Message)
}

// envelope is the backend's standard response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// RegistrationResult is returned when a parish registration is
// accepted. It carries everything the hosted checkout needs.
type RegistrationResult struct {
	ParishID               int    `json:"parish_id"`
	ParishName             string `json:"parish_name"`
	RazorpaySubscriptionID string `json:"razorpay_subscription_id"`
	RazorpayKeyID          string `json:"razorpay_key_id"`
}

// VerificationResult is the backend's answer to a payment proof.
type VerificationResult struct {
	Verified           bool   `json:"verified"`
	SubscriptionID     int    `json:"subscription_id"`
	ParishID           int    `json:"parish_id"`
	SubscriptionStatus string `json:"subscription_status"`
	Message            string `json:"message"`
}

// API is the subset of the backend this service depends on.
type API interface {
	Plans(ctx context.Context) ([]plans.Plan, error)
	Register(ctx context.Context, reg draft.Registration) (*RegistrationResult, error)
	VerifyPayment(ctx context.Context, paymentID, subscriptionID, signature string) (*VerificationResult, error)
}

// Client talks to the parish-management backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. baseURL is the API root, without
// a trailing slash.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ API = (*Client)(nil)

// Plans fetches the subscription plan catalog.
func (c *Client) Plans(ctx context.Context) ([]plans.Plan, error) {
	var out []plans.Plan
	if err := c.do(ctx, http.MethodGet, "/subscriptions/plans", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Register submits a completed registration. The backend creates the
// parish, the admin account, and a pending subscription, and returns
// the checkout parameters.
func (c *Client) Register(ctx context.Context, reg draft.Registration) (*RegistrationResult, error) {
	var out RegistrationResult
	if err := c.do(ctx, http.MethodPost, "/parishes", reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPayment forwards a payment proof to the backend, which checks
// the gateway signature and activates the subscription.
func (c *Client) VerifyPayment(ctx context.Context, paymentID, subscriptionID, signature string) (*VerificationResult, error) {
	body := map[string]string{
		"razorpay_payment_id":      paymentID,
		"razorpay_subscription_id": subscriptionID,
		"razorpay_signature":       signature,
	}
	var out VerificationResult
	if err := c.do(ctx, http.MethodPost, "/subscriptions/verify-payment", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one request/response round trip through the backend's
// envelope format.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("upstream: encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("upstream: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("upstream: decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("upstream: decode data: %w", err)
		}
	}
	return nil
}
