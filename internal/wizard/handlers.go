package wizard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luminouslogics/parishd/internal/checkout"
	"github.com/luminouslogics/parishd/internal/draft"
	"github.com/luminouslogics/parishd/internal/plans"
	"github.com/luminouslogics/parishd/internal/upstream"
)

// Handler provides the HTTP endpoints for the registration wizard.
type Handler struct {
	svc    *Service
	broker *checkout.Broker
}

// NewHandler creates a new wizard handler. broker may be nil when the
// hosted callback flow is not used.
func NewHandler(svc *Service, broker *checkout.Broker) *Handler {
	return &Handler{svc: svc, broker: broker}
}

// RegisterRoutes sets up the registration wizard routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/registration", h.StartSession)
	r.GET("/registration/:id", h.GetSession)
	r.GET("/registration/:id/plans", h.ListPlans)
	r.POST("/registration/:id/plans/reload", h.ReloadPlans)
	r.PUT("/registration/:id/draft", h.ApplyDraft)
	r.POST("/registration/:id/plan", h.SelectPlan)
	r.POST("/registration/:id/advance", h.Advance)
	r.POST("/registration/:id/retreat", h.Retreat)
	r.POST("/registration/:id/payment", h.StartPayment)
	r.POST("/registration/:id/payment/callback", h.PaymentCallback)
	r.POST("/registration/:id/payment/dismiss", h.DismissPayment)
}

// ---------- session endpoints ----------

// StartSession handles POST /v1/registration
func (h *Handler) StartSession(c *gin.Context) {
	sess, err := h.svc.Start(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to start registration"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

// GetSession handles GET /v1/registration/:id
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// ---------- plan endpoints ----------

// ListPlans handles GET /v1/registration/:id/plans?cycle=
func (h *Handler) ListPlans(c *gin.Context) {
	list, selectedInCycle, err := h.svc.Plans(c.Request.Context(), c.Param("id"), c.Query("cycle"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plans":             list,
		"count":             len(list),
		"selected_in_cycle": selectedInCycle,
	})
}

// ReloadPlans handles POST /v1/registration/:id/plans/reload
func (h *Handler) ReloadPlans(c *gin.Context) {
	if _, err := h.svc.Get(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.svc.ReloadPlans(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "plans_unavailable", "message": "Failed to load subscription plans"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "plan catalog reloaded"})
}

// SelectPlan handles POST /v1/registration/:id/plan
func (h *Handler) SelectPlan(c *gin.Context) {
	var req struct {
		PlanID       int    `json:"plan_id"`
		BillingCycle string `json:"billing_cycle"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "plan_id or billing_cycle required"})
		return
	}

	id := c.Param("id")
	var sess *Session
	var err error

	if req.BillingCycle != "" {
		sess, err = h.svc.SetBillingCycle(c.Request.Context(), id, req.BillingCycle)
		if err != nil {
			h.respondError(c, err)
			return
		}
	}
	if req.PlanID > 0 {
		sess, _, err = h.svc.SelectPlan(c.Request.Context(), id, req.PlanID)
		if err != nil {
			h.respondError(c, err)
			return
		}
	}
	if sess == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "plan_id or billing_cycle required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// ---------- navigation endpoints ----------

// ApplyDraft handles PUT /v1/registration/:id/draft
func (h *Handler) ApplyDraft(c *gin.Context) {
	var patch draft.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid draft body"})
		return
	}

	sess, err := h.svc.Apply(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// Advance handles POST /v1/registration/:id/advance
func (h *Handler) Advance(c *gin.Context) {
	sess, problems, err := h.svc.Advance(c.Request.Context(), c.Param("id"))
	if err != nil {
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) {
			status := http.StatusBadGateway
			if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
				status = apiErr.StatusCode
			}
			c.JSON(status, gin.H{"error": "registration_failed", "message": apiErr.Message})
			return
		}
		h.respondError(c, err)
		return
	}
	if len(problems) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"message": "Please fill all required fields",
			"fields":  problems,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// Retreat handles POST /v1/registration/:id/retreat
func (h *Handler) Retreat(c *gin.Context) {
	sess, err := h.svc.Retreat(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// ---------- payment endpoints ----------

// StartPayment handles POST /v1/registration/:id/payment
func (h *Handler) StartPayment(c *gin.Context) {
	sess, opts, err := h.svc.StartPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": sess,
		"options": opts,
	})
}

// PaymentCallback handles POST /v1/registration/:id/payment/callback.
// If an SDK gateway is waiting for this subscription's proof the proof
// is handed to it and that flow owns verification; otherwise the proof
// is verified here synchronously.
func (h *Handler) PaymentCallback(c *gin.Context) {
	var proof checkout.Proof
	if err := c.ShouldBindJSON(&proof); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid payment proof"})
		return
	}
	if err := proof.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "incomplete_proof", "message": "Missing required payment verification parameters"})
		return
	}

	if h.broker != nil {
		if err := h.broker.Deliver(proof); err == nil {
			c.JSON(http.StatusAccepted, gin.H{"message": "proof delivered"})
			return
		}
	}

	sess, outcome, err := h.svc.HandleProof(c.Request.Context(), c.Param("id"), proof)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrIncompleteProof):
			c.JSON(http.StatusBadRequest, gin.H{"error": "incomplete_proof", "message": "Missing required payment verification parameters"})
		case errors.Is(err, ErrProofMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": "proof_mismatch", "message": "Payment proof does not match this registration"})
		case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNotAtPayment), errors.Is(err, ErrPaymentDone):
			h.respondError(c, err)
		default:
			status := VerifyStatusCode(err)
			if status >= 500 {
				status = http.StatusBadGateway
			}
			c.JSON(status, gin.H{"error": "verification_failed", "message": "Payment verification failed. Please try again."})
		}
		return
	}

	resp := gin.H{
		"session":  sess,
		"verified": outcome.Verified,
		"message":  outcome.Message,
	}
	if outcome.Verified {
		resp["redirect_url"] = outcome.RedirectURL
		resp["redirect_delay_ms"] = outcome.RedirectDelay.Milliseconds()
	}
	c.JSON(http.StatusOK, resp)
}

// DismissPayment handles POST /v1/registration/:id/payment/dismiss
func (h *Handler) DismissPayment(c *gin.Context) {
	sess, err := h.svc.Dismiss(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.broker != nil && sess.Result != nil {
		// Unpark any SDK waiter; no waiter is fine.
		_ = h.broker.Dismiss(sess.Result.RazorpaySubscriptionID)
	}

	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// ---------- helpers ----------

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "registration session not found"})
	case errors.Is(err, ErrFrozen):
		c.JSON(http.StatusConflict, gin.H{"error": "draft_frozen", "message": "registration already submitted"})
	case errors.Is(err, ErrAtFirstStep):
		c.JSON(http.StatusConflict, gin.H{"error": "at_first_step", "message": "already at the first step"})
	case errors.Is(err, ErrAtLastStep):
		c.JSON(http.StatusConflict, gin.H{"error": "at_last_step", "message": "already at the payment step"})
	case errors.Is(err, ErrNotAtPayment):
		c.JSON(http.StatusConflict, gin.H{"error": "not_at_payment", "message": "complete registration before payment"})
	case errors.Is(err, ErrPaymentDone):
		c.JSON(http.StatusConflict, gin.H{"error": "payment_done", "message": "payment already verified"})
	case errors.Is(err, ErrInvalidCycle):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cycle", "message": "billing cycle must be monthly or yearly"})
	case errors.Is(err, plans.ErrPlanNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_not_found", "message": "unknown plan"})
	case errors.Is(err, plans.ErrEmptyCatalog):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "plans_unavailable", "message": "plan catalog not loaded; try reloading plans"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
