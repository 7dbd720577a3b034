// Package health provides a registry of named subsystem health checks.
package health

import (
	"context"
	"sync"
)

// Status is the outcome of one subsystem check.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker probes a single subsystem. A nil error means healthy. The
// detail string is informational; on error the error message replaces it.
type Checker func(ctx context.Context) (detail string, err error)

// Registry holds named checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a checker under the given subsystem name.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs every registered checker and returns the aggregate
// verdict plus per-subsystem results, in registration order.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(checkers))

	for i, nc := range checkers {
		detail, err := nc.check(ctx)
		st := Status{Name: nc.name, Healthy: err == nil, Detail: detail}
		if err != nil {
			st.Detail = err.Error()
			healthy = false
		}
		statuses[i] = st
	}

	return healthy, statuses
}
