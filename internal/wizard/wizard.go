// Package wizard drives the five-step parish registration flow: parish
// information, administrator account, plan selection, billing details,
// and payment. Each registration is a session owning a draft, a step
// cursor, and the payment state.
package wizard

import (
	"errors"
	"time"

	"github.com/luminouslogics/parishd/internal/draft"
	"github.com/luminouslogics/parishd/internal/upstream"
)

// Errors
var (
	ErrSessionNotFound = errors.New("wizard: session not found")
	ErrFrozen          = errors.New("wizard: draft is frozen after registration")
	ErrAtFirstStep     = errors.New("wizard: already at the first step")
	ErrAtLastStep      = errors.New("wizard: already at the last step")
	ErrNotAtPayment    = errors.New("wizard: registration not submitted yet")
	ErrNotRegistered   = errors.New("wizard: no registration result on session")
	ErrProofMismatch   = errors.New("wizard: proof subscription does not match session")
	ErrInvalidCycle    = errors.New("wizard: billing cycle must be monthly or yearly")
	ErrPaymentDone     = errors.New("wizard: payment already verified")
)

// PaymentState tracks where the session is in the checkout flow.
type PaymentState string

const (
	PaymentIdle       PaymentState = "idle"
	PaymentProcessing PaymentState = "processing"
	PaymentSucceeded  PaymentState = "succeeded"
	PaymentFailed     PaymentState = "failed"
)

// Session is one registration in progress.
type Session struct {
	ID           string                       `json:"id"`
	Step         int                          `json:"step"`
	Draft        draft.Draft                  `json:"draft"`
	Frozen       bool                         `json:"frozen"`
	PaymentState PaymentState                 `json:"payment_state"`
	Result       *upstream.RegistrationResult `json:"result,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at"`
}
