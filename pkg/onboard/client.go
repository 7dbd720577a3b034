package onboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a parishd instance.
type Client struct {
	baseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL, e.g.
// "https://onboarding.example.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Start opens a new registration session.
func (c *Client) Start(ctx context.Context) (*Session, error) {
	var out struct {
		Session *Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/registration", nil, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// Get fetches the current session state.
func (c *Client) Get(ctx context.Context, id string) (*Session, error) {
	var out struct {
		Session *Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/registration/"+id, nil, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// Plans lists the available subscription plans, optionally filtered by
// billing cycle ("monthly" or "yearly").
func (c *Client) Plans(ctx context.Context, id, cycle string) ([]Plan, error) {
	path := "/v1/registration/" + id + "/plans"
	if cycle != "" {
		path += "?cycle=" + url.QueryEscape(cycle)
	}
	var out struct {
		Plans []Plan `json:"plans"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Plans, nil
}

// ReloadPlans asks the service to refresh its plan catalog from the
// backend. Use after Plans fails with plans_unavailable.
func (c *Client) ReloadPlans(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/registration/"+id+"/plans/reload", nil, nil)
}

// SaveDraft merges the given fields into the session's draft.
func (c *Client) SaveDraft(ctx context.Context, id string, d Draft) (*Session, error) {
	var out struct {
		Session *Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodPut, "/v1/registration/"+id+"/draft", d, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// SelectPlan picks a plan by ID. The plan must exist in the catalog.
func (c *Client) SelectPlan(ctx context.Context, id string, planID int) (*Session, error) {
	body := map[string]any{"plan_id": planID}
	var out struct {
		Session *Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/registration/"+id+"/plan", body, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// SetBillingCycle switches the billing cycle without discarding the
// plan selection.
func (c *Client) SetBillingCycle(ctx context.Context, id, cycle string) (*Session, error) {
	body := map[string]any{"billing_cycle": cycle}
	var out struct {
		Session *Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/registration/"+id+"/plan", body, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// Advance validates the current step and moves to the next one. From
// the billing step this submits the registration to the backend.
// Validation problems come back as an *APIError with Fields set.
func (c *Client) Advance(ctx context.Context, id string) (*Session, error) {
	var out struct {
		Session *Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/registration/"+id+"/advance", nil, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// Retreat moves back one step.
func (c *Client) Retreat(ctx context.Context, id string) (*Session, error) {
	var out struct {
		Session *Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/registration/"+id+"/retreat", nil, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// StartPayment marks the payment as processing and returns the hosted
// checkout options.
func (c *Client) StartPayment(ctx context.Context, id string) (*Session, *CheckoutOptions, error) {
	var out struct {
		Session *Session         `json:"session"`
		Options *CheckoutOptions `json:"options"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/registration/"+id+"/payment", nil, &out); err != nil {
		return nil, nil, err
	}
	return out.Session, out.Options, nil
}

// SubmitProof sends the gateway's payment proof for verification.
func (c *Client) SubmitProof(ctx context.Context, id string, proof PaymentProof) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.do(ctx, http.MethodPost, "/v1/registration/"+id+"/payment/callback", proof, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dismiss reports that the checkout window was closed without paying.
// The session stays retryable.
func (c *Client) Dismiss(ctx context.Context, id string) (*Session, error) {
	var out struct {
		Session *Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/registration/"+id+"/payment/dismiss", nil, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("onboard: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("onboard: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("onboard: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = "http_error"
			apiErr.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("onboard: decode response: %w", err)
		}
	}
	return nil
}
