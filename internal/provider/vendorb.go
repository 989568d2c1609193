package provider

import (
	"context"
	"fmt"
	"time"
)

// VendorBName is the registry name of the vendor B simulator.
const VendorBName = "vendorb"

// vendorBRaw is vendor B's wire response shape: choices + usage, with
// different field names and nesting than vendor A.
type vendorBRaw struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// VendorB simulates the vendor B completion API: faster than vendor A but
// rate-limits with a Retry-After hint.
type VendorB struct {
	injector  FaultInjector
	latencies []time.Duration
	rng       *simRNG
}

// NewVendorB creates a vendor B simulator.
func NewVendorB(opts ...SimOption) *VendorB {
	o := applySimOptions(simOptions{
		latencies: []time.Duration{
			80 * time.Millisecond,
			120 * time.Millisecond,
			200 * time.Millisecond,
			300 * time.Millisecond,
		},
	}, opts)

	return &VendorB{
		injector:  o.injector,
		latencies: o.latencies,
		rng:       newSimRNG(o.seed),
	}
}

// Name returns "vendorb".
func (v *VendorB) Name() string { return VendorBName }

// Complete runs one simulated call and normalizes the result.
func (v *VendorB) Complete(ctx context.Context, req Request) (*Result, error) {
	latency := v.rng.pick(v.latencies)
	start := time.Now()

	if err := simSleep(ctx, VendorBName, latency); err != nil {
		return nil, err
	}

	if f := v.injector.Next(); f != nil {
		switch {
		case f.Status == 429:
			retryAfter := f.RetryAfter
			if retryAfter == 0 {
				hints := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
				retryAfter = hints[v.rng.intn(len(hints))]
			}
			return nil, NewRateLimited(VendorBName, retryAfter)
		case f.Status >= 500:
			return nil, NewTransient(VendorBName, f.Status, "vendor B internal error")
		default:
			return nil, NewFatal(VendorBName, f.Status, fmt.Sprintf("vendor B rejected request (%d)", f.Status))
		}
	}

	var raw vendorBRaw
	raw.Choices = make([]struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}, 1)
	raw.Choices[0].Message.Content = fmt.Sprintf("[vendorB] %s ...", truncate(req.Prompt, 60))
	raw.Usage.InputTokens = promptTokens(req.Prompt)
	raw.Usage.OutputTokens = 30 + v.rng.intn(91)

	return &Result{
		Provider:  VendorBName,
		Text:      raw.Choices[0].Message.Content,
		TokensIn:  raw.Usage.InputTokens,
		TokensOut: raw.Usage.OutputTokens,
		Latency:   time.Since(start),
	}, nil
}
