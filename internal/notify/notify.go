// Package notify delivers registration lifecycle events to a
// configured webhook receiver.
//
// Deliveries are fire-and-forget: failures are logged and counted but
// never surface to the wizard flow.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luminouslogics/parishd/internal/idgen"
	"github.com/luminouslogics/parishd/internal/retry"
)

var (
	notifyEmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parishd",
		Subsystem: "notify",
		Name:      "emit_total",
		Help:      "Total webhook emit attempts by event type.",
	}, []string{"event_type"})

	notifyEmitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parishd",
		Subsystem: "notify",
		Name:      "emit_errors_total",
		Help:      "Total webhook emit failures by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(notifyEmitTotal, notifyEmitErrors)
}

// EventType represents the type of lifecycle event
type EventType string

const (
	EventRegistrationCreated EventType = "registration.created"
	EventPaymentVerified     EventType = "payment.verified"
	EventPaymentFailed       EventType = "payment.failed"
	EventCheckoutDismissed   EventType = "checkout.dismissed"
)

// Event is the webhook payload
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Notifier posts signed events to a single configured receiver.
// A nil Notifier is valid and drops every event.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	logger *slog.Logger
}

// New creates a notifier. Returns nil when no URL is configured, which
// callers can use directly (all emit methods are nil-safe).
func New(url, secret string, logger *slog.Logger) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (n *Notifier) emit(eventType EventType, data map[string]any) {
	if n == nil {
		return
	}
	notifyEmitTotal.WithLabelValues(string(eventType)).Inc()

	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := n.send(ctx, event); err != nil {
			notifyEmitErrors.WithLabelValues(string(eventType)).Inc()
			n.logger.Warn("webhook emit failed", "event", eventType, "error", err)
		}
	}()
}

func (n *Notifier) send(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Parishd-Event", string(event.Type))
		req.Header.Set("X-Parishd-Timestamp", fmt.Sprintf("%d", event.Timestamp.Unix()))
		if n.secret != "" {
			req.Header.Set("X-Parishd-Signature", sign(payload, n.secret))
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return retry.Permanent(fmt.Errorf("receiver returned %d", resp.StatusCode))
		}
		return fmt.Errorf("receiver returned %d", resp.StatusCode)
	})
}

func sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// RegistrationCreated reports an accepted registration.
func (n *Notifier) RegistrationCreated(sessionID string, parishID int, parishName, subscriptionID string) {
	n.emit(EventRegistrationCreated, map[string]any{
		"session_id":      sessionID,
		"parish_id":       parishID,
		"parish_name":     parishName,
		"subscription_id": subscriptionID,
	})
}

// PaymentVerified reports a verified subscription payment.
func (n *Notifier) PaymentVerified(sessionID string, parishID, subscriptionID int, status string) {
	n.emit(EventPaymentVerified, map[string]any{
		"session_id":          sessionID,
		"parish_id":           parishID,
		"subscription_id":     subscriptionID,
		"subscription_status": status,
	})
}

// PaymentFailed reports a rejected or errored verification.
func (n *Notifier) PaymentFailed(sessionID, reason string) {
	n.emit(EventPaymentFailed, map[string]any{
		"session_id": sessionID,
		"reason":     reason,
	})
}

// CheckoutDismissed reports a checkout window closed without payment.
func (n *Notifier) CheckoutDismissed(sessionID, subscriptionID string) {
	n.emit(EventCheckoutDismissed, map[string]any{
		"session_id":      sessionID,
		"subscription_id": subscriptionID,
	})
}
