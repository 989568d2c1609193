package provider

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// simOptions configure the simulated vendors.
type simOptions struct {
	injector  FaultInjector
	latencies []time.Duration
	seed      int64
}

// SimOption customizes a simulated vendor.
type SimOption func(*simOptions)

// WithFaultInjector sets the fault injection strategy.
func WithFaultInjector(fi FaultInjector) SimOption {
	return func(o *simOptions) { o.injector = fi }
}

// WithLatencies sets the latency distribution the vendor samples from.
func WithLatencies(latencies ...time.Duration) SimOption {
	return func(o *simOptions) { o.latencies = latencies }
}

// WithSeed fixes the vendor's RNG seed for deterministic tests.
func WithSeed(seed int64) SimOption {
	return func(o *simOptions) { o.seed = seed }
}

func applySimOptions(defaults simOptions, opts []SimOption) simOptions {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	if o.injector == nil {
		o.injector = NoFaults{}
	}
	if o.seed <= 0 {
		o.seed = time.Now().UnixNano()
	}
	return o
}

// simRNG is a lockable rand source shared by a vendor's goroutines.
type simRNG struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSimRNG(seed int64) *simRNG {
	return &simRNG{rng: rand.New(rand.NewSource(seed))}
}

func (s *simRNG) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// pick samples one latency from the distribution.
func (s *simRNG) pick(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	return d[s.intn(len(d))]
}

// simSleep waits for the sampled latency, honoring ctx. Returns a timeout
// error when the deadline fires first.
func simSleep(ctx context.Context, providerName string, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return NewTimeout(providerName, d)
		}
		return ctx.Err()
	}
}

// promptTokens estimates the prompt token count the way the vendor
// sandboxes bill it: one token per four characters, minimum one.
func promptTokens(prompt string) int {
	n := len(prompt) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// truncate clips a prompt echo to at most n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
