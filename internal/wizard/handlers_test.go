package wizard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminouslogics/parishd/internal/checkout"
	"github.com/luminouslogics/parishd/internal/plans"
	"github.com/luminouslogics/parishd/internal/upstream"
)

func setupRouter(api *fakeAPI) (*gin.Engine, *Service) {
	gin.SetMode(gin.TestMode)

	svc := NewService(NewMemoryStore(), api, plans.NewCatalog(), nil, testLogger(), Options{
		LoginURL:      "/login",
		RedirectDelay: 2 * time.Second,
	})
	h := NewHandler(svc, checkout.NewBroker())

	r := gin.New()
	h.RegisterRoutes(r.Group("/v1"))
	return r, svc
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func startSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w, out := doJSON(t, r, http.MethodPost, "/v1/registration", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	sess := out["session"].(map[string]any)
	return sess["id"].(string)
}

func TestStartSessionEndpoint(t *testing.T) {
	r, _ := setupRouter(&fakeAPI{plans: testPlans()})

	w, out := doJSON(t, r, http.MethodPost, "/v1/registration", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	sess := out["session"].(map[string]any)
	assert.Contains(t, sess["id"], "reg_")
	assert.EqualValues(t, 1, sess["step"])
	assert.Equal(t, "idle", sess["payment_state"])
}

func TestGetSessionNotFound(t *testing.T) {
	r, _ := setupRouter(&fakeAPI{plans: testPlans()})

	w, out := doJSON(t, r, http.MethodGet, "/v1/registration/reg_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", out["error"])
}

func TestListPlansEndpoint(t *testing.T) {
	r, _ := setupRouter(&fakeAPI{plans: testPlans()})
	id := startSession(t, r)

	w, out := doJSON(t, r, http.MethodGet, "/v1/registration/"+id+"/plans?cycle=monthly", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, out["count"])
	assert.Equal(t, false, out["selected_in_cycle"])
}

func TestListPlansUnloadedCatalog(t *testing.T) {
	r, _ := setupRouter(&fakeAPI{plansErr: fmt.Errorf("boom")})
	id := startSession(t, r)

	w, out := doJSON(t, r, http.MethodGet, "/v1/registration/"+id+"/plans", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "plans_unavailable", out["error"])
}

func TestApplyDraftEndpoint(t *testing.T) {
	r, _ := setupRouter(&fakeAPI{plans: testPlans()})
	id := startSession(t, r)

	w, out := doJSON(t, r, http.MethodPut, "/v1/registration/"+id+"/draft",
		map[string]any{"parish_name": "St. Mary Parish", "city": "Springfield"})
	require.Equal(t, http.StatusOK, w.Code)

	sess := out["session"].(map[string]any)
	d := sess["draft"].(map[string]any)
	assert.Equal(t, "St. Mary Parish", d["parish_name"])
	assert.Equal(t, "Springfield", d["city"])
	assert.Equal(t, "monthly", d["billing_cycle"], "defaults survive the patch")
}

func TestAdvanceEndpointValidationFailure(t *testing.T) {
	r, _ := setupRouter(&fakeAPI{plans: testPlans()})
	id := startSession(t, r)

	w, out := doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/advance", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation_failed", out["error"])

	fields := out["fields"].(map[string]any)
	assert.Equal(t, "Parish name is required", fields["parish_name"])
	assert.Contains(t, fields, "timezone")
}

func TestSelectPlanEndpoint(t *testing.T) {
	r, _ := setupRouter(&fakeAPI{plans: testPlans()})
	id := startSession(t, r)

	w, out := doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/plan",
		map[string]any{"plan_id": 2})
	require.Equal(t, http.StatusOK, w.Code)

	sess := out["session"].(map[string]any)
	d := sess["draft"].(map[string]any)
	assert.EqualValues(t, 2, d["plan_id"])

	w, out = doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/plan",
		map[string]any{"plan_id": 99})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "plan_not_found", out["error"])
}

func TestSelectPlanSwitchCycle(t *testing.T) {
	r, _ := setupRouter(&fakeAPI{plans: testPlans()})
	id := startSession(t, r)

	w, out := doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/plan",
		map[string]any{"billing_cycle": "yearly"})
	require.Equal(t, http.StatusOK, w.Code)

	sess := out["session"].(map[string]any)
	d := sess["draft"].(map[string]any)
	assert.Equal(t, "yearly", d["billing_cycle"])

	w, out = doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/plan",
		map[string]any{"billing_cycle": "weekly"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_cycle", out["error"])
}

func TestRetreatEndpointAtFirstStep(t *testing.T) {
	r, _ := setupRouter(&fakeAPI{plans: testPlans()})
	id := startSession(t, r)

	w, out := doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/retreat", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "at_first_step", out["error"])
}

// driveToPayment walks the HTTP surface through a successful submit.
func driveToPayment(t *testing.T, r *gin.Engine, svc *Service) string {
	t.Helper()
	id := startSession(t, r)

	fillStep(t, svc, id, 1)
	w, _ := doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)

	fillStep(t, svc, id, 2)
	w, _ = doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/plan", map[string]any{"plan_id": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)

	fillStep(t, svc, id, 4)
	w, out := doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)

	sess := out["session"].(map[string]any)
	require.EqualValues(t, 5, sess["step"])
	return id
}

func TestFullFlowOverHTTP(t *testing.T) {
	api := &fakeAPI{
		plans:       testPlans(),
		registerRes: acceptedResult(),
		verifyRes: &upstream.VerificationResult{
			Verified: true, SubscriptionID: 7, ParishID: 42,
			SubscriptionStatus: "active", Message: "Payment verified successfully",
		},
	}
	r, svc := setupRouter(api)
	id := driveToPayment(t, r, svc)

	// Open checkout.
	w, out := doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/payment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	opts := out["options"].(map[string]any)
	assert.Equal(t, "sub_Nxy123", opts["subscription_id"])
	assert.Equal(t, "Subscription for St. Mary Parish", opts["description"])

	// Gateway callback with the proof.
	w, out = doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/payment/callback", map[string]any{
		"razorpay_payment_id":      "pay_123",
		"razorpay_subscription_id": "sub_Nxy123",
		"razorpay_signature":       "sig_789",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["verified"])
	assert.Equal(t, "/login", out["redirect_url"])
	assert.EqualValues(t, 2000, out["redirect_delay_ms"])
	assert.Equal(t, 1, api.verifyCalls)
}

func TestCallbackRejectsIncompleteProof(t *testing.T) {
	api := &fakeAPI{plans: testPlans(), registerRes: acceptedResult()}
	r, svc := setupRouter(api)
	id := driveToPayment(t, r, svc)

	w, out := doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/payment/callback", map[string]any{
		"razorpay_payment_id": "pay_123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "incomplete_proof", out["error"])
	assert.Zero(t, api.verifyCalls)
}

func TestDismissEndpoint(t *testing.T) {
	api := &fakeAPI{plans: testPlans(), registerRes: acceptedResult()}
	r, svc := setupRouter(api)
	id := driveToPayment(t, r, svc)

	w, _ := doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/payment", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, out := doJSON(t, r, http.MethodPost, "/v1/registration/"+id+"/payment/dismiss", nil)
	require.Equal(t, http.StatusOK, w.Code)

	sess := out["session"].(map[string]any)
	assert.Equal(t, "idle", sess["payment_state"])
	assert.EqualValues(t, 5, sess["step"])
	assert.Zero(t, api.verifyCalls)
}

func TestDraftFrozenAfterSubmitOverHTTP(t *testing.T) {
	api := &fakeAPI{plans: testPlans(), registerRes: acceptedResult()}
	r, svc := setupRouter(api)
	id := driveToPayment(t, r, svc)

	w, out := doJSON(t, r, http.MethodPut, "/v1/registration/"+id+"/draft",
		map[string]any{"parish_name": "Another Parish"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "draft_frozen", out["error"])
}
