// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package health implements the Kubernetes-style probes the relying-party
// server exposes: liveness (process is up), readiness (credential and
// challenge storage reachable), and startup (initialization finished).
package health

import (
	"context"
	"sync"
	"time"
)

// Status of a single probe target.
type Status string

const (
	// StatusHealthy indicates the target is operating normally.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the target cannot serve ceremonies.
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	// Name identifies the checked target, e.g. "storage".
	Name string `json:"name"`
	// Status is the target's health status.
	Status Status `json:"status"`
	// Message carries detail, typically the ping error on failure.
	Message string `json:"message,omitempty"`
	// Latency is how long the check took.
	Latency time.Duration `json:"latency"`
}

// CheckFunc performs a single readiness check. It must return quickly;
// the readiness handler runs every registered check per probe.
type CheckFunc func(ctx context.Context) CheckResult

// StoreCheck adapts a storage ping into a CheckFunc. The server
// registers one per configured backend, so a PostgreSQL outage flips
// readiness without touching the ceremony handlers.
func StoreCheck(name string, ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{
				Name:    name,
				Status:  StatusUnhealthy,
				Message: err.Error(),
			}
		}
		return CheckResult{
			Name:   name,
			Status: StatusHealthy,
		}
	}
}

// Checker runs the registered readiness checks and tracks whether the
// server has finished starting.
type Checker struct {
	mu      sync.RWMutex
	started bool
	checks  map[string]CheckFunc
}

// NewChecker creates an empty checker. The server registers its storage
// check during construction and calls MarkStarted once listening.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
	}
}

// RegisterCheck adds a readiness check, replacing any existing check
// with the same name. Nil checks are ignored.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// MarkStarted records that initialization is complete. Until then the
// startup probe answers unhealthy.
func (c *Checker) MarkStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
}

// IsStarted reports whether MarkStarted has been called.
func (c *Checker) IsStarted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Live answers the liveness probe. The process serving the request is
// by definition alive; storage trouble is a readiness concern, not a
// reason to restart.
func (c *Checker) Live(ctx context.Context) CheckResult {
	return CheckResult{
		Name:    "liveness",
		Status:  StatusHealthy,
		Message: "service is alive",
	}
}

// Ready runs every registered check and returns the individual results.
// With no checks registered (in-memory storage needs none beyond the
// default) the service is considered ready.
func (c *Checker) Ready(ctx context.Context) []CheckResult {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	if len(checks) == 0 {
		return []CheckResult{{
			Name:    "default",
			Status:  StatusHealthy,
			Message: "no readiness checks configured",
		}}
	}

	results := make([]CheckResult, 0, len(checks))
	for name, check := range checks {
		start := time.Now()
		result := check(ctx)
		result.Latency = time.Since(start)
		if result.Name == "" {
			result.Name = name
		}
		results = append(results, result)
	}
	return results
}

// Startup answers the startup probe. It fails until MarkStarted.
func (c *Checker) Startup(ctx context.Context) CheckResult {
	if !c.IsStarted() {
		return CheckResult{
			Name:    "startup",
			Status:  StatusUnhealthy,
			Message: "service initialization not complete",
		}
	}
	return CheckResult{
		Name:    "startup",
		Status:  StatusHealthy,
		Message: "service fully initialized",
	}
}

// IsHealthy reports whether every readiness check passes.
func (c *Checker) IsHealthy(ctx context.Context) bool {
	return AggregateStatus(c.Ready(ctx)) == StatusHealthy
}

// AggregateStatus collapses check results into one status: unhealthy if
// any check failed, healthy otherwise.
func AggregateStatus(results []CheckResult) Status {
	for _, result := range results {
		if result.Status != StatusHealthy {
			return StatusUnhealthy
		}
	}
	return StatusHealthy
}
