// Package security provides request admission control for the gateway:
// API key hashing and a two-tier (global + per-tenant) rate limiter.
package security

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a global rate limit plus an independent per-tenant
// limit, so one noisy tenant cannot starve the rest.
type RateLimiter struct {
	globalLimiter  *rate.Limiter
	tenantLimiters map[string]*rate.Limiter
	mu             sync.RWMutex

	// Configuration
	requestsPerSecond float64
	burst             int
}

// NewRateLimiter creates a rate limiter. Both tiers use the same rate and
// burst; the global tier sees the sum of all tenants' traffic.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		globalLimiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		tenantLimiters:    make(map[string]*rate.Limiter),
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
	}
}

// Allow reports whether a request from the tenant should be admitted.
func (rl *RateLimiter) Allow(tenantID string) bool {
	// Check global rate limit
	if !rl.globalLimiter.Allow() {
		return false
	}

	// Check per-tenant rate limit
	limiter := rl.getTenantLimiter(tenantID)
	return limiter.Allow()
}

// Wait blocks until the tenant's request can be admitted.
func (rl *RateLimiter) Wait(ctx context.Context, tenantID string) error {
	// Wait for global rate limit
	if err := rl.globalLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("global rate limit: %w", err)
	}

	// Wait for per-tenant rate limit
	limiter := rl.getTenantLimiter(tenantID)
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("tenant rate limit: %w", err)
	}

	return nil
}

// getTenantLimiter gets or creates the limiter for a tenant.
func (rl *RateLimiter) getTenantLimiter(tenantID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.tenantLimiters[tenantID]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := rl.tenantLimiters[tenantID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(rl.requestsPerSecond), rl.burst)
	rl.tenantLimiters[tenantID] = limiter
	return limiter
}
