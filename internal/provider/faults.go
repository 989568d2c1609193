package provider

import (
	"math/rand"
	"sync"
	"time"
)

// Fault describes one injected failure for a simulated vendor call.
type Fault struct {
	// Status is the HTTP-like status the vendor reports (429, 500, ...).
	Status int

	// RetryAfter is the retry hint attached to 429 responses.
	RetryAfter time.Duration
}

// FaultInjector decides, per call, whether a simulated vendor fault fires.
// Implementations must be safe for concurrent use.
type FaultInjector interface {
	// Next returns the fault for the next call, or nil for success.
	Next() *Fault
}

// ScriptedFaults replays a fixed fault sequence, then succeeds forever.
// Used by tests to exercise exact retry/fallback paths.
type ScriptedFaults struct {
	mu     sync.Mutex
	faults []*Fault
	pos    int
}

// Script builds a scripted injector from the given sequence. A nil entry
// means "succeed on this call".
func Script(faults ...*Fault) *ScriptedFaults {
	return &ScriptedFaults{faults: faults}
}

// Next returns the next scripted fault.
func (s *ScriptedFaults) Next() *Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.faults) {
		return nil
	}
	f := s.faults[s.pos]
	s.pos++
	return f
}

// RandomFaults fires a fixed fault with the given probability. Mirrors the
// failure behavior of the real vendor sandboxes for local development.
type RandomFaults struct {
	rate  float64
	fault Fault

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomFaults creates a probabilistic injector. A non-positive seed
// derives one from the clock.
func NewRandomFaults(rate float64, fault Fault, seed int64) *RandomFaults {
	if seed <= 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomFaults{
		rate:  rate,
		fault: fault,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Next returns the fault with probability rate.
func (r *RandomFaults) Next() *Fault {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng.Float64() < r.rate {
		f := r.fault
		return &f
	}
	return nil
}

// NoFaults is an injector that never fires.
type NoFaults struct{}

// Next always returns nil.
func (NoFaults) Next() *Fault { return nil }
