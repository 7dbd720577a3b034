// Package plans models the subscription plan catalog served by the
// upstream parish-management API.
package plans

import (
	"errors"
	"sync"
	"time"
)

// Errors
var (
	ErrPlanNotFound = errors.New("plans: plan not found")
	ErrEmptyCatalog = errors.New("plans: catalog not loaded")
)

// Plan is one subscription tier for a single billing cycle. The same
// tier appears twice in the catalog, once per cycle, each with its own
// plan ID.
type Plan struct {
	PlanID          int    `json:"plan_id"`
	PlanName        string `json:"plan_name"`
	BillingCycle    string `json:"billing_cycle"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	MaxParishioners int    `json:"max_parishioners,omitempty"`
	MaxFamilies     int    `json:"max_families,omitempty"`
	TrialPeriodDays int    `json:"trial_period_days,omitempty"`
}

// FilterByCycle returns the plans matching the billing cycle, in
// catalog order.
func FilterByCycle(all []Plan, cycle string) []Plan {
	out := make([]Plan, 0, len(all))
	for _, p := range all {
		if p.BillingCycle == cycle {
			out = append(out, p)
		}
	}
	return out
}

// FindByID returns the plan with the given ID.
func FindByID(all []Plan, id int) (Plan, error) {
	for _, p := range all {
		if p.PlanID == id {
			return p, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}

// Catalog is a concurrency-safe snapshot of the plan list, refreshed
// from upstream on demand.
type Catalog struct {
	mu        sync.RWMutex
	plans     []Plan
	fetchedAt time.Time
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Set replaces the catalog contents.
func (c *Catalog) Set(plans []Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans = make([]Plan, len(plans))
	copy(c.plans, plans)
	c.fetchedAt = time.Now()
}

// All returns a copy of every plan. Returns ErrEmptyCatalog if the
// catalog has never been loaded.
func (c *Catalog) All() ([]Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.fetchedAt.IsZero() {
		return nil, ErrEmptyCatalog
	}
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out, nil
}

// ByCycle returns the plans for one billing cycle.
func (c *Catalog) ByCycle(cycle string) ([]Plan, error) {
	all, err := c.All()
	if err != nil {
		return nil, err
	}
	return FilterByCycle(all, cycle), nil
}

// Find returns the plan with the given ID.
func (c *Catalog) Find(id int) (Plan, error) {
	all, err := c.All()
	if err != nil {
		return Plan{}, err
	}
	return FindByID(all, id)
}

// FetchedAt reports when the catalog was last refreshed. Zero means
// never.
func (c *Catalog) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Loaded reports whether the catalog has been refreshed at least once.
func (c *Catalog) Loaded() bool {
	return !c.FetchedAt().IsZero()
}
