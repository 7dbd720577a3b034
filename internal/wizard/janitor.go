package wizard

import (
	"context"
	"log/slog"
	"time"

	"github.com/luminouslogics/parishd/internal/metrics"
)

// Janitor sweeps abandoned sessions. A session that has not been
// touched within the TTL is deleted unless its payment already
// succeeded. Upstream records created by a submitted-but-unpaid
// registration belong to the backend and are not touched here.
type Janitor struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor creates a janitor sweeping at the given interval.
func NewJanitor(store Store, ttl, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Janitor{store: store, ttl: ttl, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled. Call in a goroutine.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.ttl)
	n, err := j.store.DeleteIdle(ctx, cutoff)
	if err != nil {
		j.logger.Warn("session sweep failed", "error", err)
		return
	}
	if n > 0 {
		metrics.ActiveWizardSessions.Sub(float64(n))
		j.logger.Info("swept abandoned sessions", "count", n, "ttl", j.ttl)
	}
}
