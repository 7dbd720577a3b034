package checkout

import (
	"context"
	"sync"
)

// Gateway opens a hosted checkout and blocks until the payer completes
// or dismisses it. Implementations decide how the window is actually
// presented (browser callback, CLI prompt, test fake).
type Gateway interface {
	// Open returns the signed proof on completion, ErrDismissed if the
	// payer closed the window, or ctx.Err() on cancellation.
	Open(ctx context.Context, opts Options) (*Proof, error)
}

type outcome struct {
	proof     *Proof
	dismissed bool
}

// Broker is a Gateway for the hosted-web flow: Open parks a waiter
// keyed by subscription id, and the HTTP callback and dismiss endpoints
// deliver the outcome to it. It also works without a waiter — Deliver
// and Dismiss report ErrNotPending so callers can fall back to handling
// the outcome synchronously.
type Broker struct {
	mu      sync.Mutex
	pending map[string]chan outcome
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{pending: make(map[string]chan outcome)}
}

var _ Gateway = (*Broker)(nil)

// Open registers a pending checkout for opts.SubscriptionID and waits
// for its outcome. A second Open for the same subscription replaces the
// first waiter; the abandoned waiter sees ErrDismissed.
func (b *Broker) Open(ctx context.Context, opts Options) (*Proof, error) {
	ch := make(chan outcome, 1)

	b.mu.Lock()
	if prev, ok := b.pending[opts.SubscriptionID]; ok {
		prev <- outcome{dismissed: true}
	}
	b.pending[opts.SubscriptionID] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.pending[opts.SubscriptionID] == ch {
			delete(b.pending, opts.SubscriptionID)
		}
		b.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-ch:
		if out.dismissed {
			return nil, ErrDismissed
		}
		return out.proof, nil
	}
}

// Deliver hands a completed proof to the waiter for its subscription.
func (b *Broker) Deliver(proof Proof) error {
	if err := proof.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	ch, ok := b.pending[proof.SubscriptionID]
	if ok {
		delete(b.pending, proof.SubscriptionID)
	}
	b.mu.Unlock()

	if !ok {
		return ErrNotPending
	}
	ch <- outcome{proof: &proof}
	return nil
}

// Dismiss tells the waiter the payer closed the window.
func (b *Broker) Dismiss(subscriptionID string) error {
	b.mu.Lock()
	ch, ok := b.pending[subscriptionID]
	if ok {
		delete(b.pending, subscriptionID)
	}
	b.mu.Unlock()

	if !ok {
		return ErrNotPending
	}
	ch <- outcome{dismissed: true}
	return nil
}
