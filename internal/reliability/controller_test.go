package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/turnpike-ai/turnpike/internal/provider"
)

// fakeProvider returns scripted errors then succeeds.
type fakeProvider struct {
	name  string
	errs  []error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req provider.Request) (*provider.Result, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &provider.Result{
		Provider:  f.name,
		Text:      "reply from " + f.name,
		TokensIn:  10,
		TokensOut: 20,
	}, nil
}

// newTestController swaps the sleeper for a recorder so retry waits are
// observable without real delays.
func newTestController(t *testing.T, reg *provider.Registry, cfg Config) (*Controller, *[]time.Duration) {
	t.Helper()
	c := New(reg, cfg)
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return c, &waits
}

func registryWith(providers ...provider.ChatProvider) *provider.Registry {
	reg := provider.NewRegistry()
	for _, p := range providers {
		reg.Register(p)
	}
	return reg
}

func TestDispatch_SuccessFirstAttempt(t *testing.T) {
	primary := &fakeProvider{name: "alpha"}
	c, waits := newTestController(t, registryWith(primary), Config{})

	result, outcomes, err := c.Dispatch(context.Background(), "alpha", "", provider.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Provider != "alpha" {
		t.Errorf("provider = %s, want alpha", result.Provider)
	}
	if len(outcomes) != 1 || outcomes[0].Attempts != 1 || !outcomes[0].Success {
		t.Errorf("outcomes = %+v, want one successful single-attempt outcome", outcomes)
	}
	if len(*waits) != 0 {
		t.Errorf("no retries expected, got waits %v", *waits)
	}
}

func TestDispatch_RetriesTransientThenSucceeds(t *testing.T) {
	primary := &fakeProvider{
		name: "alpha",
		errs: []error{
			provider.NewTransient("alpha", 500, "server error"),
			provider.NewTransient("alpha", 500, "server error"),
		},
	}
	fallback := &fakeProvider{name: "beta"}
	c, _ := newTestController(t, registryWith(primary, fallback), Config{})

	result, outcomes, err := c.Dispatch(context.Background(), "alpha", "beta", provider.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Provider != "alpha" {
		t.Errorf("provider = %s, want alpha (primary should win on third attempt)", result.Provider)
	}
	if outcomes[0].Attempts != 3 {
		t.Errorf("attempts = %d, want 3", outcomes[0].Attempts)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestDispatch_FallbackEscalation(t *testing.T) {
	primary := &fakeProvider{
		name: "alpha",
		errs: []error{
			provider.NewTransient("alpha", 500, "server error"),
			provider.NewTransient("alpha", 500, "server error"),
			provider.NewTransient("alpha", 500, "server error"),
			provider.NewTransient("alpha", 500, "server error"),
		},
	}
	fallback := &fakeProvider{name: "beta"}
	c, _ := newTestController(t, registryWith(primary, fallback), Config{MaxRetries: 3})

	result, outcomes, err := c.Dispatch(context.Background(), "alpha", "beta", provider.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Provider != "beta" {
		t.Errorf("provider = %s, want beta", result.Provider)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2 (both providers visible)", len(outcomes))
	}
	if outcomes[0].Provider != "alpha" || outcomes[0].Success {
		t.Errorf("primary outcome = %+v, want failed alpha", outcomes[0])
	}
	if outcomes[0].Attempts != 4 {
		t.Errorf("primary attempts = %d, want 4 (1 + 3 retries)", outcomes[0].Attempts)
	}
	if outcomes[1].Provider != "beta" || !outcomes[1].Success {
		t.Errorf("fallback outcome = %+v, want successful beta", outcomes[1])
	}
}

func TestDispatch_NoFallbackExhaustion(t *testing.T) {
	primary := &fakeProvider{
		name: "alpha",
		errs: []error{
			provider.NewTransient("alpha", 500, "e"),
			provider.NewTransient("alpha", 500, "e"),
			provider.NewTransient("alpha", 500, "e"),
			provider.NewTransient("alpha", 500, "e"),
		},
	}
	c, _ := newTestController(t, registryWith(primary), Config{MaxRetries: 3})

	_, outcomes, err := c.Dispatch(context.Background(), "alpha", "", provider.Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %T, want *ExhaustedError", err)
	}
	if got := exhausted.Providers(); len(got) != 1 || got[0] != "alpha" {
		t.Errorf("Providers() = %v, want [alpha]", got)
	}
	if len(outcomes) != 1 {
		t.Errorf("outcomes = %d, want 1", len(outcomes))
	}
}

func TestDispatch_FatalSkipsRetriesButEscalates(t *testing.T) {
	primary := &fakeProvider{
		name: "alpha",
		errs: []error{provider.NewFatal("alpha", 400, "bad request")},
	}
	fallback := &fakeProvider{name: "beta"}
	c, waits := newTestController(t, registryWith(primary, fallback), Config{})

	result, outcomes, err := c.Dispatch(context.Background(), "alpha", "beta", provider.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Provider != "beta" {
		t.Errorf("provider = %s, want beta", result.Provider)
	}
	if primary.calls != 1 {
		t.Errorf("primary called %d times, want 1 (fatal is never retried)", primary.calls)
	}
	if outcomes[0].ErrKind != provider.KindFatal.String() {
		t.Errorf("primary error kind = %s, want fatal", outcomes[0].ErrKind)
	}
	if len(*waits) != 0 {
		t.Errorf("fatal should not wait, got %v", *waits)
	}
}

func TestDispatch_RetryAfterHintOverridesBackoff(t *testing.T) {
	primary := &fakeProvider{
		name: "alpha",
		errs: []error{provider.NewRateLimited("alpha", 500*time.Millisecond)},
	}
	c, waits := newTestController(t, registryWith(primary), Config{
		BackoffBase: 100 * time.Millisecond,
		BackoffCap:  800 * time.Millisecond,
	})

	_, _, err := c.Dispatch(context.Background(), "alpha", "", provider.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(*waits) != 1 {
		t.Fatalf("waits = %v, want one wait", *waits)
	}
	if (*waits)[0] < 500*time.Millisecond {
		t.Errorf("wait = %v, want at least the 500ms hint", (*waits)[0])
	}
}

func TestDispatch_BackoffDoublesUpToCap(t *testing.T) {
	primary := &fakeProvider{
		name: "alpha",
		errs: []error{
			provider.NewTransient("alpha", 500, "e"),
			provider.NewTransient("alpha", 500, "e"),
			provider.NewTransient("alpha", 500, "e"),
			provider.NewTransient("alpha", 500, "e"),
		},
	}
	c, waits := newTestController(t, registryWith(primary), Config{
		MaxRetries:  4,
		BackoffBase: 100 * time.Millisecond,
		BackoffCap:  300 * time.Millisecond,
	})

	_, _, err := c.Dispatch(context.Background(), "alpha", "", provider.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i, w := range want {
		if (*waits)[i] != w {
			t.Errorf("wait[%d] = %v, want %v", i, (*waits)[i], w)
		}
	}
}

func TestDispatch_ContextCancelStopsEscalation(t *testing.T) {
	primary := &fakeProvider{
		name: "alpha",
		errs: []error{provider.NewTransient("alpha", 500, "e")},
	}
	fallback := &fakeProvider{name: "beta"}
	c := New(registryWith(primary, fallback), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, _, err := c.Dispatch(ctx, "alpha", "beta", provider.Request{Prompt: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times after cancel, want 0", fallback.calls)
	}
}

func TestDispatch_UnknownProvider(t *testing.T) {
	c, _ := newTestController(t, provider.NewRegistry(), Config{})

	_, _, err := c.Dispatch(context.Background(), "ghost", "", provider.Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}
