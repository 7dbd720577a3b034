// Package checkout models the hosted payment gateway handoff. The
// service never talks to the gateway directly: it hands checkout
// options to whoever can open the hosted window (browser, CLI, test
// fake) and receives a signed proof back.
package checkout

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrDismissed       = errors.New("checkout: window dismissed without payment")
	ErrIncompleteProof = errors.New("checkout: proof is missing required fields")
	ErrNotPending      = errors.New("checkout: no pending checkout for subscription")
)

// Prefill pre-populates the gateway's contact fields from the
// administrator details.
type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// Theme styles the hosted checkout window.
type Theme struct {
	Color string `json:"color"`
}

// Options is the configuration handed to the hosted checkout. Field
// names follow the gateway's client API.
type Options struct {
	Key            string  `json:"key"`
	SubscriptionID string  `json:"subscription_id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Prefill        Prefill `json:"prefill"`
	Theme          Theme   `json:"theme"`
}

// NewOptions assembles checkout options for a registered parish.
func NewOptions(keyID, subscriptionID, merchant, parishName, color string, prefill Prefill) Options {
	return Options{
		Key:            keyID,
		SubscriptionID: subscriptionID,
		Name:           merchant,
		Description:    fmt.Sprintf("Subscription for %s", parishName),
		Prefill:        prefill,
		Theme:          Theme{Color: color},
	}
}

// Proof is the gateway's signed confirmation of a completed payment.
type Proof struct {
	PaymentID      string `json:"razorpay_payment_id"`
	SubscriptionID string `json:"razorpay_subscription_id"`
	Signature      string `json:"razorpay_signature"`
}

// Validate fails fast on a proof with any missing field, before it
// reaches the network.
func (p Proof) Validate() error {
	if p.PaymentID == "" || p.SubscriptionID == "" || p.Signature == "" {
		return ErrIncompleteProof
	}
	return nil
}
