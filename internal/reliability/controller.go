// Package reliability turns a single logical completion request into a
// resilient multi-attempt, multi-provider dispatch.
//
// Attempts within a turn are strictly sequential. The primary provider is
// always tried before the fallback; each provider gets its own retry budget
// with exponential backoff, and a rate-limit retry-after hint overrides the
// computed backoff for the next wait.
package reliability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/turnpike-ai/turnpike/internal/log"
	"github.com/turnpike-ai/turnpike/internal/provider"
)

// Config tunes the dispatch behavior.
type Config struct {
	// CallTimeout bounds each individual provider attempt.
	CallTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt,
	// per provider.
	MaxRetries int

	// BackoffBase is the wait before the first retry; it doubles on each
	// subsequent retry.
	BackoffBase time.Duration

	// BackoffCap bounds the computed backoff.
	BackoffCap time.Duration
}

// DefaultConfig mirrors the vendor sandbox tuning: 3s per call, 3 retries,
// 100ms base backoff capped at 800ms.
func DefaultConfig() Config {
	return Config{
		CallTimeout: 3 * time.Second,
		MaxRetries:  3,
		BackoffBase: 100 * time.Millisecond,
		BackoffCap:  800 * time.Millisecond,
	}
}

// Outcome is the terminal per-provider result of a dispatch, kept for audit
// records and metrics.
type Outcome struct {
	Provider string
	Attempts int
	Success  bool
	Status   int
	ErrKind  string
	Latency  time.Duration
}

// ExhaustedError aggregates the terminal failures of every provider tried.
type ExhaustedError struct {
	Outcomes []Outcome
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		parts = append(parts, fmt.Sprintf("%s: %s after %d attempt(s)", o.Provider, o.ErrKind, o.Attempts))
	}
	return "all providers exhausted: " + strings.Join(parts, "; ")
}

// Providers returns the names of the providers that were tried.
func (e *ExhaustedError) Providers() []string {
	names := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		names = append(names, o.Provider)
	}
	return names
}

// Controller executes reliability-controlled dispatches against the
// provider registry.
type Controller struct {
	registry *provider.Registry
	cfg      Config

	// sleep waits between attempts; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a controller. Zero config fields fall back to defaults.
func New(registry *provider.Registry, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = def.BackoffCap
	}

	return &Controller{
		registry: registry,
		cfg:      cfg,
		sleep:    sleepCtx,
	}
}

// Dispatch runs the request against the primary provider and, if the
// primary is exhausted or fails fatally, against the fallback (when
// configured). It returns the first successful result together with the
// per-provider outcomes, or an *ExhaustedError when every provider failed.
func (c *Controller) Dispatch(ctx context.Context, primary, fallback string, req provider.Request) (*provider.Result, []Outcome, error) {
	var outcomes []Outcome

	names := []string{primary}
	if fallback != "" {
		names = append(names, fallback)
	}

	for _, name := range names {
		result, outcome, err := c.callWithRetry(ctx, name, req)
		outcomes = append(outcomes, outcome)
		if err == nil {
			return result, outcomes, nil
		}
		// The caller went away: stop immediately, do not escalate.
		if ctx.Err() != nil {
			return nil, outcomes, ctx.Err()
		}
		log.Warn("provider exhausted",
			"provider", name,
			"attempts", outcome.Attempts,
			"kind", outcome.ErrKind,
		)
	}

	return nil, outcomes, &ExhaustedError{Outcomes: outcomes}
}

// callWithRetry runs attempts against one provider until success, a fatal
// classification, or retry-budget exhaustion.
func (c *Controller) callWithRetry(ctx context.Context, name string, req provider.Request) (*provider.Result, Outcome, error) {
	p, err := c.registry.Get(name)
	if err != nil {
		return nil, Outcome{Provider: name, Attempts: 0, ErrKind: provider.KindFatal.String()}, err
	}

	start := time.Now()
	attempt := 0
	for {
		attempt++

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		result, err := p.Complete(callCtx, req)
		cancel()

		if err == nil {
			return result, Outcome{
				Provider: name,
				Attempts: attempt,
				Success:  true,
				Status:   200,
				Latency:  time.Since(start),
			}, nil
		}

		kind := provider.KindOf(err)
		outcome := Outcome{
			Provider: name,
			Attempts: attempt,
			ErrKind:  kind.String(),
			Status:   statusOf(err),
			Latency:  time.Since(start),
		}

		// Fatal short-circuits remaining retries on this provider but
		// still lets Dispatch fall through to the fallback.
		if kind == provider.KindFatal || attempt > c.cfg.MaxRetries || ctx.Err() != nil {
			return nil, outcome, err
		}

		wait := c.backoff(attempt)
		if hint, ok := provider.RetryAfterHint(err); ok {
			wait = hint
		}

		log.Debug("retrying provider",
			"provider", name,
			"attempt", attempt,
			"kind", kind.String(),
			"wait", wait,
		)

		if err := c.sleep(ctx, wait); err != nil {
			return nil, outcome, err
		}
	}
}

// backoff computes the exponential wait after the given attempt number:
// base, 2*base, 4*base, ... bounded by the cap.
func (c *Controller) backoff(attempt int) time.Duration {
	d := c.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.cfg.BackoffCap {
			return c.cfg.BackoffCap
		}
	}
	if d > c.cfg.BackoffCap {
		return c.cfg.BackoffCap
	}
	return d
}

func statusOf(err error) int {
	var pe *provider.Error
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
