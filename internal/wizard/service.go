package wizard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/luminouslogics/parishd/internal/checkout"
	"github.com/luminouslogics/parishd/internal/draft"
	"github.com/luminouslogics/parishd/internal/idgen"
	"github.com/luminouslogics/parishd/internal/metrics"
	"github.com/luminouslogics/parishd/internal/notify"
	"github.com/luminouslogics/parishd/internal/plans"
	"github.com/luminouslogics/parishd/internal/retry"
	"github.com/luminouslogics/parishd/internal/rules"
	"github.com/luminouslogics/parishd/internal/traces"
	"github.com/luminouslogics/parishd/internal/upstream"
)

// Options configures the checkout handoff and the post-payment
// redirect.
type Options struct {
	// CheckoutKeyID is the fallback gateway key when the registration
	// result does not carry one.
	CheckoutKeyID string
	// Merchant is the display name shown in the checkout window.
	Merchant string
	// ThemeColor styles the checkout window.
	ThemeColor string
	// LoginURL is where the client is sent after a verified payment.
	LoginURL string
	// RedirectDelay is how long the client should show the success
	// state before redirecting.
	RedirectDelay time.Duration
}

// Service owns wizard sessions and drives the registration flow
// against the upstream backend.
type Service struct {
	store    Store
	api      upstream.API
	catalog  *plans.Catalog
	notifier *notify.Notifier
	logger   *slog.Logger
	opts     Options

	// locks serializes submit and verify per session.
	locks sync.Map // sessionID → *sync.Mutex
}

// NewService creates the wizard service. notifier may be nil.
func NewService(store Store, api upstream.API, catalog *plans.Catalog, notifier *notify.Notifier, logger *slog.Logger, opts Options) *Service {
	if opts.Merchant == "" {
		opts.Merchant = "Parish Management System"
	}
	if opts.ThemeColor == "" {
		opts.ThemeColor = "#4f6aed"
	}
	if opts.LoginURL == "" {
		opts.LoginURL = "/login"
	}
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = 2 * time.Second
	}
	return &Service{
		store:    store,
		api:      api,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
	}
}

func (s *Service) lockFor(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ---------- session lifecycle ----------

// Start creates a fresh session at step 1 and refreshes the plan
// catalog. A catalog fetch failure is non-fatal: the session is still
// usable and the client can reload plans later.
func (s *Service) Start(ctx context.Context) (*Session, error) {
	ctx, span := traces.StartSpan(ctx, "wizard.start")
	defer span.End()

	now := time.Now()
	sess := &Session{
		ID:           idgen.WithPrefix("reg_"),
		Step:         rules.FirstStep,
		Draft:        draft.New(),
		PaymentState: PaymentIdle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.refreshCatalog(ctx); err != nil {
		s.logger.Warn("plan catalog fetch failed", "session", sess.ID, "error", err)
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	metrics.ActiveWizardSessions.Inc()
	s.logger.Info("registration session started", "session", sess.ID)
	return sess, nil
}

// Get returns the session by ID.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// Apply merges a draft patch into the session. Rejected once the draft
// is frozen by a successful registration.
func (s *Service) Apply(ctx context.Context, id string, p draft.Patch) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Frozen {
		return nil, ErrFrozen
	}

	sess.Draft.Apply(p)
	sess.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ---------- navigation ----------

// Advance validates the current step and moves the cursor forward.
// Validation problems make it a no-op: the session is returned
// unchanged together with the field→message map. Advancing past the
// billing step submits the registration; this happens at most once per
// session, double calls return the already-submitted session.
func (s *Service) Advance(ctx context.Context, id string) (*Session, map[string]string, error) {
	ctx, span := traces.StartSpan(ctx, "wizard.advance", traces.SessionID(id))
	defer span.End()

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	span.SetAttributes(traces.Step(sess.Step))

	// Submitted while another call held the lock. A submitted session
	// sits at the payment step, so this must win over the last-step check.
	if sess.Result != nil {
		return sess, nil, nil
	}
	if sess.Step >= rules.LastStep {
		return sess, nil, ErrAtLastStep
	}

	problems := rules.Evaluate(sess.Step, sess.Draft)
	if sess.Step == rules.StepBilling {
		// The submit is the last gate: the whole draft must hold
		// together, not just the billing fields.
		problems = rules.EvaluateThrough(rules.StepBilling, sess.Draft)
	}
	if len(problems) > 0 {
		return sess, problems, nil
	}

	if sess.Step == rules.StepBilling {
		return s.submit(ctx, sess)
	}

	from := sess.Step
	sess.Step++
	sess.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, nil, err
	}
	metrics.StepTransitionsTotal.WithLabelValues(strconv.Itoa(from), strconv.Itoa(sess.Step)).Inc()
	return sess, nil, nil
}

// submit performs the one-and-only upstream registration call. Caller
// holds the session lock.
func (s *Service) submit(ctx context.Context, sess *Session) (*Session, map[string]string, error) {
	ctx, span := traces.StartSpan(ctx, "wizard.submit",
		traces.SessionID(sess.ID), traces.ParishName(sess.Draft.ParishName))
	defer span.End()

	res, err := s.api.Register(ctx, sess.Draft.Flatten())
	if err != nil {
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			metrics.RegistrationsTotal.WithLabelValues("rejected").Inc()
		} else {
			metrics.RegistrationsTotal.WithLabelValues("upstream_error").Inc()
		}
		s.logger.Warn("registration submit failed", "session", sess.ID, "error", err)
		// Cursor stays at billing; the draft is untouched and editable.
		return sess, nil, err
	}

	sess.Result = res
	sess.Step = rules.StepPayment
	sess.Frozen = true
	sess.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues("accepted").Inc()
	metrics.StepTransitionsTotal.WithLabelValues(
		strconv.Itoa(rules.StepBilling), strconv.Itoa(rules.StepPayment)).Inc()
	s.notifier.RegistrationCreated(sess.ID, res.ParishID, res.ParishName, res.RazorpaySubscriptionID)
	s.logger.Info("registration accepted",
		"session", sess.ID, "parish_id", res.ParishID, "subscription", res.RazorpaySubscriptionID)
	return sess, nil, nil
}

// Retreat moves the cursor one step back. The first step has nothing
// before it, and the payment step is terminal.
func (s *Service) Retreat(ctx context.Context, id string) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case sess.Step <= rules.FirstStep:
		return nil, ErrAtFirstStep
	case sess.Step >= rules.StepPayment:
		return nil, ErrFrozen
	}

	from := sess.Step
	sess.Step--
	sess.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, err
	}
	metrics.StepTransitionsTotal.WithLabelValues(strconv.Itoa(from), strconv.Itoa(sess.Step)).Inc()
	return sess, nil
}

// ---------- plan selection ----------

// Plans returns the catalog filtered to the given cycle (the session's
// own cycle when empty) and whether the currently selected plan falls
// inside that subset.
func (s *Service) Plans(ctx context.Context, id, cycle string) ([]plans.Plan, bool, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if cycle == "" {
		cycle = sess.Draft.BillingCycle
	}

	filtered, err := s.catalog.ByCycle(cycle)
	if err != nil {
		return nil, false, err
	}

	selectedInCycle := false
	if sess.Draft.PlanID > 0 {
		if _, err := plans.FindByID(filtered, sess.Draft.PlanID); err == nil {
			selectedInCycle = true
		}
	}
	return filtered, selectedInCycle, nil
}

// SelectPlan records the chosen plan on the draft after checking it
// exists in the catalog.
func (s *Service) SelectPlan(ctx context.Context, id string, planID int) (*Session, plans.Plan, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, plans.Plan{}, err
	}
	if sess.Frozen {
		return nil, plans.Plan{}, ErrFrozen
	}

	p, err := s.catalog.Find(planID)
	if err != nil {
		return nil, plans.Plan{}, err
	}

	sess.Draft.PlanID = planID
	sess.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, plans.Plan{}, err
	}
	return sess, p, nil
}

// SetBillingCycle switches the billing cycle. The plan selection id is
// kept even when it belongs to the other cycle; Plans reports whether
// it still falls inside the filtered subset.
func (s *Service) SetBillingCycle(ctx context.Context, id, cycle string) (*Session, error) {
	if cycle != "monthly" && cycle != "yearly" {
		return nil, ErrInvalidCycle
	}

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Frozen {
		return nil, ErrFrozen
	}

	sess.Draft.BillingCycle = cycle
	sess.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ReloadPlans re-fetches the catalog from upstream.
func (s *Service) ReloadPlans(ctx context.Context) error {
	return s.refreshCatalog(ctx)
}

func (s *Service) refreshCatalog(ctx context.Context) error {
	list, err := s.api.Plans(ctx)
	if err != nil {
		metrics.PlanFetchesTotal.WithLabelValues("error").Inc()
		return err
	}
	s.catalog.Set(list)
	metrics.PlanFetchesTotal.WithLabelValues("ok").Inc()
	return nil
}

// ---------- payment ----------

// StartPayment marks the session as processing and returns the hosted
// checkout options built from the registration result and the frozen
// draft.
func (s *Service) StartPayment(ctx context.Context, id string) (*Session, checkout.Options, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, checkout.Options{}, err
	}
	if sess.Step != rules.StepPayment || sess.Result == nil {
		return nil, checkout.Options{}, ErrNotAtPayment
	}
	if sess.PaymentState == PaymentSucceeded {
		return nil, checkout.Options{}, ErrPaymentDone
	}

	sess.PaymentState = PaymentProcessing
	sess.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, checkout.Options{}, err
	}

	keyID := sess.Result.RazorpayKeyID
	if keyID == "" {
		keyID = s.opts.CheckoutKeyID
	}
	parishName := sess.Result.ParishName
	if parishName == "" {
		parishName = sess.Draft.ParishName
	}

	opts := checkout.NewOptions(
		keyID, sess.Result.RazorpaySubscriptionID,
		s.opts.Merchant, parishName, s.opts.ThemeColor,
		checkout.Prefill{
			Name:    sess.Draft.AdminName(),
			Email:   sess.Draft.AdminEmail,
			Contact: sess.Draft.AdminPhone,
		},
	)
	return sess, opts, nil
}

// PaymentOutcome is the result of a payment verification attempt.
type PaymentOutcome struct {
	Verified      bool                         `json:"verified"`
	Message       string                       `json:"message"`
	RedirectURL   string                       `json:"redirect_url,omitempty"`
	RedirectDelay time.Duration                `json:"-"`
	Verification  *upstream.VerificationResult `json:"verification,omitempty"`
}

// HandleProof verifies a gateway payment proof against the backend.
// The proof is checked locally first (all fields present, subscription
// id matches the session) so a malformed proof never reaches the
// network. Transient upstream failures are retried; the backend
// de-duplicates by payment id.
func (s *Service) HandleProof(ctx context.Context, id string, proof checkout.Proof) (*Session, *PaymentOutcome, error) {
	ctx, span := traces.StartSpan(ctx, "wizard.verify_payment",
		traces.SessionID(id), traces.SubscriptionID(proof.SubscriptionID))
	defer span.End()

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sess.Step != rules.StepPayment || sess.Result == nil {
		return nil, nil, ErrNotAtPayment
	}
	if sess.PaymentState == PaymentSucceeded {
		return nil, nil, ErrPaymentDone
	}

	if err := proof.Validate(); err != nil {
		return nil, nil, err
	}
	if proof.SubscriptionID != sess.Result.RazorpaySubscriptionID {
		return nil, nil, ErrProofMismatch
	}

	var result *upstream.VerificationResult
	err = retry.Do(ctx, 3, time.Second, func() error {
		var callErr error
		result, callErr = s.api.VerifyPayment(ctx, proof.PaymentID, proof.SubscriptionID, proof.Signature)
		var apiErr *upstream.APIError
		if errors.As(callErr, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return retry.Permanent(callErr)
		}
		return callErr
	})
	if err != nil {
		metrics.PaymentVerificationsTotal.WithLabelValues("error").Inc()
		sess.PaymentState = PaymentFailed
		sess.UpdatedAt = time.Now()
		_ = s.store.Update(ctx, sess)
		s.notifier.PaymentFailed(sess.ID, err.Error())
		s.logger.Warn("payment verification failed", "session", sess.ID, "error", err)
		return sess, nil, err
	}

	if !result.Verified {
		metrics.PaymentVerificationsTotal.WithLabelValues("failed").Inc()
		sess.PaymentState = PaymentFailed
		sess.UpdatedAt = time.Now()
		if err := s.store.Update(ctx, sess); err != nil {
			return nil, nil, err
		}
		msg := result.Message
		if msg == "" {
			msg = "Payment verification failed. Please try again."
		}
		s.notifier.PaymentFailed(sess.ID, msg)
		return sess, &PaymentOutcome{Verified: false, Message: msg, Verification: result}, nil
	}

	sess.PaymentState = PaymentSucceeded
	sess.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, nil, err
	}

	metrics.PaymentVerificationsTotal.WithLabelValues("verified").Inc()
	metrics.ActiveWizardSessions.Dec()
	s.notifier.PaymentVerified(sess.ID, result.ParishID, result.SubscriptionID, result.SubscriptionStatus)
	s.logger.Info("payment verified",
		"session", sess.ID, "parish_id", result.ParishID, "status", result.SubscriptionStatus)

	msg := result.Message
	if msg == "" {
		msg = "Payment verified successfully"
	}
	return sess, &PaymentOutcome{
		Verified:      true,
		Message:       msg,
		RedirectURL:   s.opts.LoginURL,
		RedirectDelay: s.opts.RedirectDelay,
		Verification:  result,
	}, nil
}

// Dismiss records that the checkout window was closed without paying.
// The session stays on the payment step and checkout can be reopened
// against the same gateway subscription.
func (s *Service) Dismiss(ctx context.Context, id string) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.PaymentState == PaymentSucceeded {
		return nil, ErrPaymentDone
	}

	sess.PaymentState = PaymentIdle
	sess.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, err
	}

	metrics.CheckoutDismissalsTotal.Inc()
	if sess.Result != nil {
		s.notifier.CheckoutDismissed(sess.ID, sess.Result.RazorpaySubscriptionID)
	}
	return sess, nil
}

// VerifyStatusCode maps an upstream verification error to the HTTP
// status the API should relay.
func VerifyStatusCode(err error) int {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return http.StatusBadGateway
}
