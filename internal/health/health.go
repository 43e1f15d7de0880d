// Package health provides component health checks for gestured.
//
// Components register a check function; the checker runs them with a
// per-check timeout and aggregates an overall status served over the
// control socket.
package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Check inspects one component and reports its status.
type Check func(ctx context.Context) CheckResult

// Component is a registered health check.
type Component struct {
	Name string

	// Critical marks the component as required for overall health:
	// an unhealthy critical component makes the daemon unhealthy, a
	// non-critical one only degrades it.
	Critical bool

	// Timeout bounds one check run. Zero selects DefaultTimeout.
	Timeout time.Duration

	Check Check
}

// DefaultTimeout bounds a single check run.
const DefaultTimeout = 5 * time.Second

// Checker runs registered component checks and caches the latest results.
type Checker struct {
	mu         sync.RWMutex
	components []Component
	results    map[string]CheckResult
	ready      bool
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{
		results: make(map[string]CheckResult),
	}
}

// Register adds a component check. Registering the same name again
// replaces the previous check.
func (c *Checker) Register(comp Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.components {
		if c.components[i].Name == comp.Name {
			c.components[i] = comp
			return
		}
	}
	c.components = append(c.components, comp)
}

// SetReady marks the daemon ready to accept work.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// Ready reports whether the daemon is ready to accept work.
func (c *Checker) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// RunChecks runs every registered check and returns the fresh results in
// registration order.
func (c *Checker) RunChecks(ctx context.Context) []CheckResult {
	c.mu.RLock()
	comps := make([]Component, len(c.components))
	copy(comps, c.components)
	c.mu.RUnlock()

	results := make([]CheckResult, 0, len(comps))
	for _, comp := range comps {
		results = append(results, c.runOne(ctx, comp))
	}

	c.mu.Lock()
	for _, r := range results {
		c.results[r.Component] = r
	}
	c.mu.Unlock()

	return results
}

func (c *Checker) runOne(ctx context.Context, comp Component) CheckResult {
	timeout := comp.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan CheckResult, 1)
	go func() {
		done <- comp.Check(ctx)
	}()

	var result CheckResult
	select {
	case result = <-done:
	case <-ctx.Done():
		result = CheckResult{
			Component: comp.Name,
			Status:    StatusUnhealthy,
			Message:   "check timed out",
		}
	}

	result.Component = comp.Name
	result.CheckedAt = start
	result.Duration = time.Since(start)
	return result
}

// Results returns the most recent result per component, in registration
// order. Components never checked report StatusUnknown.
func (c *Checker) Results() []CheckResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results := make([]CheckResult, 0, len(c.components))
	for _, comp := range c.components {
		if r, ok := c.results[comp.Name]; ok {
			results = append(results, r)
		} else {
			results = append(results, CheckResult{
				Component: comp.Name,
				Status:    StatusUnknown,
			})
		}
	}
	return results
}

// Overall aggregates the cached results: an unhealthy critical component
// is unhealthy, any other non-healthy result degrades, all healthy is
// healthy. A checker with no results is unknown.
func (c *Checker) Overall() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.results) == 0 {
		return StatusUnknown
	}

	overall := StatusHealthy
	for _, comp := range c.components {
		r, ok := c.results[comp.Name]
		if !ok {
			continue
		}
		switch {
		case r.Status == StatusUnhealthy && comp.Critical:
			return StatusUnhealthy
		case r.Status != StatusHealthy:
			overall = StatusDegraded
		}
	}
	return overall
}

// Healthy builds a passing result for the component.
func Healthy(message string) CheckResult {
	return CheckResult{Status: StatusHealthy, Message: message}
}

// Degraded builds a degraded result for the component.
func Degraded(message string) CheckResult {
	return CheckResult{Status: StatusDegraded, Message: message}
}

// Unhealthy builds a failing result for the component.
func Unhealthy(message string) CheckResult {
	return CheckResult{Status: StatusUnhealthy, Message: message}
}
