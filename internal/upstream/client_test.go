package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminouslogics/parishd/internal/draft"
)

func TestPlans(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/subscriptions/plans", r.URL.Path)

		_, _ = w.Write([]byte(`{
			"success": true,
			"message": "ok",
			"data": [
				{"plan_id": 1, "plan_name": "Starter", "billing_cycle": "monthly", "amount": "999", "currency": "INR"},
				{"plan_id": 2, "plan_name": "Growth", "billing_cycle": "yearly", "amount": "23990", "currency": "INR"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	got, err := c.Plans(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Starter", got[0].PlanName)
	assert.Equal(t, "yearly", got[1].BillingCycle)
}

func TestRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/parishes", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "St. Mary Parish", body["parish_name"])
		assert.Equal(t, "America/Chicago", body["timezone"], "timezone arrives flattened")
		assert.Equal(t, "online", body["payment_method"])

		_, _ = w.Write([]byte(`{
			"success": true,
			"message": "Parish registered",
			"data": {
				"parish_id": 42,
				"parish_name": "St. Mary Parish",
				"razorpay_subscription_id": "sub_Nxy123",
				"razorpay_key_id": "rzp_test_abc"
			}
		}`))
	}))
	defer srv.Close()

	d := draft.New()
	d.ParishName = "St. Mary Parish"

	c := NewClient(srv.URL, 5*time.Second)
	res, err := c.Register(context.Background(), d.Flatten())
	require.NoError(t, err)
	assert.Equal(t, 42, res.ParishID)
	assert.Equal(t, "sub_Nxy123", res.RazorpaySubscriptionID)
	assert.Equal(t, "rzp_test_abc", res.RazorpayKeyID)
}

func TestRegisterRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success": false, "message": "Parish email already registered"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Register(context.Background(), draft.Registration{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Parish email already registered", apiErr.Message)
}

func TestVerifyPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/verify-payment", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pay_123", body["razorpay_payment_id"])
		assert.Equal(t, "sub_456", body["razorpay_subscription_id"])
		assert.Equal(t, "sig_789", body["razorpay_signature"])

		_, _ = w.Write([]byte(`{
			"success": true,
			"message": "ok",
			"data": {
				"verified": true,
				"subscription_id": 7,
				"parish_id": 42,
				"subscription_status": "active",
				"message": "Payment verified successfully"
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	res, err := c.VerifyPayment(context.Background(), "pay_123", "sub_456", "sig_789")
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, "active", res.SubscriptionStatus)
	assert.Equal(t, 42, res.ParishID)
}

func TestVerifyPaymentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success": false, "message": "Invalid payment signature"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.VerifyPayment(context.Background(), "pay_123", "sub_456", "bad")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid payment signature", apiErr.Message)
}

func TestEnvelopeSuccessFalseWithoutErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "message": "Registration failed"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Plans(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, "Registration failed", apiErr.Message)
}

func TestNonJSONErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Plans(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}
