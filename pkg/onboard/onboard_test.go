package onboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminouslogics/parishd/internal/checkout"
	"github.com/luminouslogics/parishd/internal/draft"
	"github.com/luminouslogics/parishd/internal/plans"
	"github.com/luminouslogics/parishd/internal/upstream"
	"github.com/luminouslogics/parishd/internal/wizard"
)

type stubAPI struct {
	verifyCalls int
	lastReg     draft.Registration
}

func (s *stubAPI) Plans(ctx context.Context) ([]plans.Plan, error) {
	return []plans.Plan{
		{PlanID: 1, PlanName: "Basic", BillingCycle: "monthly", Amount: "999", Currency: "INR"},
		{PlanID: 2, PlanName: "Standard", BillingCycle: "monthly", Amount: "1999", Currency: "INR"},
	}, nil
}

func (s *stubAPI) Register(ctx context.Context, reg draft.Registration) (*upstream.RegistrationResult, error) {
	s.lastReg = reg
	return &upstream.RegistrationResult{
		ParishID:               42,
		ParishName:             reg.ParishName,
		RazorpaySubscriptionID: "sub_Nxy123",
		RazorpayKeyID:          "rzp_test_abc",
	}, nil
}

func (s *stubAPI) VerifyPayment(ctx context.Context, paymentID, subscriptionID, signature string) (*upstream.VerificationResult, error) {
	s.verifyCalls++
	return &upstream.VerificationResult{
		Verified:           true,
		SubscriptionID:     7,
		ParishID:           42,
		SubscriptionStatus: "active",
		Message:            "Payment verified successfully",
	}, nil
}

func newTestStack(t *testing.T) (*httptest.Server, *stubAPI) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &stubAPI{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := wizard.NewService(wizard.NewMemoryStore(), api, plans.NewCatalog(), nil, logger, wizard.Options{
		CheckoutKeyID: "rzp_fallback",
		LoginURL:      "/login",
		RedirectDelay: 2 * time.Second,
	})
	h := wizard.NewHandler(svc, checkout.NewBroker())

	r := gin.New()
	h.RegisterRoutes(r.Group("/v1"))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, api
}

func completeDraft() Draft {
	return Draft{
		ParishName:   "St. Mary Parish",
		Diocese:      "Diocese of Springfield",
		AddressLine1: "123 Church Street",
		City:         "Springfield",
		State:        "Illinois",
		Country:      "United States",
		PostalCode:   "62701",
		Phone:        "+15551234567",
		Email:        "info@stmary.org",
		PatronSaint:  "St. Mary",
		Timezone:     &SelectItem{Label: "Central Time (CT)", Value: "America/Chicago"},

		AdminEmail:     "admin@stmary.org",
		AdminPassword:  "secret123",
		AdminFirstName: "John",
		AdminLastName:  "Smith",
		AdminPhone:     "+15557654321",
		AdminRole:      "Pastor",

		BillingName:    "St. Mary Parish",
		BillingEmail:   "billing@stmary.org",
		BillingPhone:   "9876543210",
		BillingAddress: "123 Church Street, Suite 100",
		BillingCity:    "Mumbai",
		BillingState:   "Maharashtra",
		BillingPincode: "400001",
		BillingCountry: "IN",
	}
}

// payingGateway completes the checkout with a proof for whatever
// subscription the options carry.
type payingGateway struct {
	opened *CheckoutOptions
}

func (g *payingGateway) Open(ctx context.Context, opts CheckoutOptions) (*PaymentProof, error) {
	g.opened = &opts
	return &PaymentProof{
		PaymentID:      "pay_123",
		SubscriptionID: opts.SubscriptionID,
		Signature:      "sig_789",
	}, nil
}

type dismissingGateway struct{}

func (dismissingGateway) Open(ctx context.Context, opts CheckoutOptions) (*PaymentProof, error) {
	return nil, ErrDismissed
}

func TestRunCompletesRegistration(t *testing.T) {
	srv, api := newTestStack(t)
	c := NewClient(srv.URL)

	gw := &payingGateway{}
	res, err := Run(context.Background(), c, completeDraft(), 1, gw)
	require.NoError(t, err)

	assert.True(t, res.Verified)
	assert.Equal(t, "/login", res.RedirectURL)
	assert.EqualValues(t, 2000, res.RedirectDelayMS)
	assert.Equal(t, 1, api.verifyCalls)

	require.NotNil(t, gw.opened)
	assert.Equal(t, "sub_Nxy123", gw.opened.SubscriptionID)
	assert.Equal(t, "rzp_test_abc", gw.opened.Key, "key from the registration result wins")
	assert.Equal(t, "Subscription for St. Mary Parish", gw.opened.Description)

	assert.Equal(t, "online", api.lastReg.PaymentMethod)
	assert.Equal(t, "America/Chicago", api.lastReg.Timezone)
}

func TestRunDismissalLeavesSessionRetryable(t *testing.T) {
	srv, api := newTestStack(t)
	c := NewClient(srv.URL)

	_, err := Run(context.Background(), c, completeDraft(), 1, dismissingGateway{})
	assert.ErrorIs(t, err, ErrDismissed)
	assert.Zero(t, api.verifyCalls)
}

func TestRunSurfacesValidationProblems(t *testing.T) {
	srv, _ := newTestStack(t)
	c := NewClient(srv.URL)

	d := completeDraft()
	d.ParishName = ""
	_, err := Run(context.Background(), c, d, 1, &payingGateway{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "validation_failed", apiErr.Code)
	assert.Equal(t, "Parish name is required", apiErr.Fields["parish_name"])
}

func TestClientPlansFilter(t *testing.T) {
	srv, _ := newTestStack(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	sess, err := c.Start(ctx)
	require.NoError(t, err)

	list, err := c.Plans(ctx, sess.ID, "monthly")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, "Basic", list[0].PlanName)
}

func TestClientUnknownSession(t *testing.T) {
	srv, _ := newTestStack(t)
	c := NewClient(srv.URL)

	_, err := c.Get(context.Background(), "reg_missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestGatewayErrorDoesNotSubmitProof(t *testing.T) {
	srv, api := newTestStack(t)
	c := NewClient(srv.URL)

	gwErr := errors.New("window crashed")
	gw := gatewayFunc(func(ctx context.Context, opts CheckoutOptions) (*PaymentProof, error) {
		return nil, gwErr
	})

	_, err := Run(context.Background(), c, completeDraft(), 1, gw)
	assert.ErrorIs(t, err, gwErr)
	assert.Zero(t, api.verifyCalls)
}

type gatewayFunc func(ctx context.Context, opts CheckoutOptions) (*PaymentProof, error)

func (f gatewayFunc) Open(ctx context.Context, opts CheckoutOptions) (*PaymentProof, error) {
	return f(ctx, opts)
}
