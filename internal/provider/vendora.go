package provider

import (
	"context"
	"fmt"
	"time"
)

// VendorAName is the registry name of the vendor A simulator.
const VendorAName = "vendora"

// vendorARaw is vendor A's wire response shape.
type vendorARaw struct {
	OutputText string `json:"outputText"`
	TokensIn   int    `json:"tokensIn"`
	TokensOut  int    `json:"tokensOut"`
	LatencyMs  int64  `json:"latencyMs"`
}

// VendorA simulates the vendor A completion API: occasionally slow,
// occasionally failing with a 500. Response fields use vendor A's naming;
// Complete normalizes them.
type VendorA struct {
	injector  FaultInjector
	latencies []time.Duration
	rng       *simRNG
}

// NewVendorA creates a vendor A simulator. Defaults match the sandbox:
// latency sampled from 80ms-2.5s, no faults unless an injector is set.
func NewVendorA(opts ...SimOption) *VendorA {
	o := applySimOptions(simOptions{
		latencies: []time.Duration{
			80 * time.Millisecond,
			120 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			1800 * time.Millisecond,
			2500 * time.Millisecond,
		},
	}, opts)

	return &VendorA{
		injector:  o.injector,
		latencies: o.latencies,
		rng:       newSimRNG(o.seed),
	}
}

// Name returns "vendora".
func (v *VendorA) Name() string { return VendorAName }

// Complete runs one simulated call and normalizes the result.
func (v *VendorA) Complete(ctx context.Context, req Request) (*Result, error) {
	latency := v.rng.pick(v.latencies)
	start := time.Now()

	if err := simSleep(ctx, VendorAName, latency); err != nil {
		return nil, err
	}

	if f := v.injector.Next(); f != nil {
		switch {
		case f.Status >= 500:
			return nil, NewTransient(VendorAName, f.Status, "vendor A internal error")
		case f.Status == 429:
			return nil, NewRateLimited(VendorAName, f.RetryAfter)
		default:
			return nil, NewFatal(VendorAName, f.Status, fmt.Sprintf("vendor A rejected request (%d)", f.Status))
		}
	}

	raw := vendorARaw{
		OutputText: fmt.Sprintf("[vendorA] %s ...", truncate(req.Prompt, 60)),
		TokensIn:   promptTokens(req.Prompt),
		TokensOut:  30 + v.rng.intn(91),
		LatencyMs:  latency.Milliseconds(),
	}

	return &Result{
		Provider:  VendorAName,
		Text:      raw.OutputText,
		TokensIn:  raw.TokensIn,
		TokensOut: raw.TokensOut,
		Latency:   time.Since(start),
	}, nil
}
