package provider

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/turnpike-ai/turnpike/pkg/observability"
)

// Instrumented wraps a ChatProvider with tracing and metrics. Every call
// produces one span and one provider-call metric sample, labeled with the
// wrapped provider's name and the normalized outcome.
type Instrumented struct {
	inner ChatProvider
}

// Instrument wraps a provider with observability. Wrapping an already
// instrumented provider returns it unchanged.
func Instrument(p ChatProvider) ChatProvider {
	if _, ok := p.(*Instrumented); ok {
		return p
	}
	return &Instrumented{inner: p}
}

// Name returns the wrapped provider's name.
func (p *Instrumented) Name() string { return p.inner.Name() }

// Complete delegates to the wrapped provider, recording a span and metrics.
func (p *Instrumented) Complete(ctx context.Context, req Request) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "provider.complete",
		trace.WithAttributes(attribute.String("provider", p.inner.Name())),
	)
	defer span.End()

	start := time.Now()
	result, err := p.inner.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		kind := KindOf(err)
		span.SetStatus(codes.Error, kind.String())
		span.SetAttributes(attribute.String("error.kind", kind.String()))
		observability.RecordProviderCall(p.inner.Name(), kind.String(), elapsed, 0, 0)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("tokens.in", result.TokensIn),
		attribute.Int("tokens.out", result.TokensOut),
	)
	observability.RecordProviderCall(p.inner.Name(), "success", elapsed, result.TokensIn, result.TokensOut)
	return result, nil
}
