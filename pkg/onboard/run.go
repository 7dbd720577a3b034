package onboard

import (
	"context"
	"errors"
	"fmt"
)

// ErrDismissed is returned by a Gateway when the checkout window was
// closed without completing the payment.
var ErrDismissed = errors.New("onboard: checkout dismissed")

// Gateway opens the hosted checkout window and returns the payment
// proof. Implementations range from a browser handoff to an interactive
// terminal prompt; return ErrDismissed when the user backs out.
type Gateway interface {
	Open(ctx context.Context, opts CheckoutOptions) (*PaymentProof, error)
}

// Run drives a full registration: it opens a session, fills the draft,
// walks the wizard through submission, opens the checkout via gw and
// verifies the payment. The session is left retryable if the gateway
// reports a dismissal.
func Run(ctx context.Context, c *Client, d Draft, planID int, gw Gateway) (*VerifyResult, error) {
	sess, err := c.Start(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := c.SaveDraft(ctx, sess.ID, d); err != nil {
		return nil, err
	}

	// Parish info and administrator steps.
	for i := 0; i < 2; i++ {
		if _, err := c.Advance(ctx, sess.ID); err != nil {
			return nil, err
		}
	}

	if _, err := c.SelectPlan(ctx, sess.ID, planID); err != nil {
		return nil, err
	}
	if _, err := c.Advance(ctx, sess.ID); err != nil {
		return nil, err
	}

	// Billing step; this advance submits the registration.
	sess, err = c.Advance(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if sess.Result == nil {
		return nil, fmt.Errorf("onboard: registration submitted but no result on session")
	}

	_, opts, err := c.StartPayment(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	proof, err := gw.Open(ctx, *opts)
	if errors.Is(err, ErrDismissed) {
		if _, dErr := c.Dismiss(ctx, sess.ID); dErr != nil {
			return nil, dErr
		}
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("onboard: checkout failed: %w", err)
	}

	return c.SubmitProof(ctx, sess.ID, *proof)
}
