// Package metrics provides Prometheus instrumentation for parishd.
package metrics

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path and status bucket
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parishd",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parishd",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RegistrationsTotal counts registration submissions by outcome
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parishd",
			Name:      "registrations_total",
			Help:      "Registration submissions by outcome",
		},
		[]string{"status"}, // accepted, rejected, upstream_error
	)

	// PaymentVerificationsTotal counts payment verification calls by result
	PaymentVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parishd",
			Name:      "payment_verifications_total",
			Help:      "Payment verification attempts by result",
		},
		[]string{"result"}, // verified, failed, error
	)

	// StepTransitionsTotal counts wizard step transitions
	StepTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parishd",
			Name:      "step_transitions_total",
			Help:      "Wizard step transitions",
		},
		[]string{"from", "to"},
	)

	// CheckoutDismissalsTotal counts checkout windows closed without paying
	CheckoutDismissalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parishd",
			Name:      "checkout_dismissals_total",
			Help:      "Checkout windows dismissed without completing payment",
		},
	)

	// PlanFetchesTotal counts plan catalog fetches by result
	PlanFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parishd",
			Name:      "plan_fetches_total",
			Help:      "Plan catalog fetches by result",
		},
		[]string{"result"}, // ok, error
	)

	// ActiveWizardSessions tracks sessions currently in progress
	ActiveWizardSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parishd",
			Name:      "active_wizard_sessions",
			Help:      "Wizard sessions currently open",
		},
	)

	// DBConnectionsOpen tracks open database connections
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parishd",
			Name:      "db_connections_open",
			Help:      "Open database connections",
		},
	)

	// DBConnectionsInUse tracks in-use database connections
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parishd",
			Name:      "db_connections_in_use",
			Help:      "Database connections currently in use",
		},
	)
)

// statusBucket collapses status codes into 2xx/3xx/4xx/5xx buckets to
// keep cardinality down.
func statusBucket(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// Middleware returns a Gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			statusBucket(c.Writer.Status()),
		).Inc()

		HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// StartDBStatsCollector periodically exports sql.DB pool stats until ctx
// is cancelled.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := db.Stats()
				DBConnectionsOpen.Set(float64(stats.OpenConnections))
				DBConnectionsInUse.Set(float64(stats.InUse))
			}
		}
	}()
}
