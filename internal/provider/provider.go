// Package provider defines the completion-provider abstraction for turnpike.
//
// A provider turns a composed prompt into a reply. Each backend (simulated
// vendors, OpenAI, Gemini, Bedrock) implements the ChatProvider interface and
// normalizes its own response and error shapes into Result and *Error, so
// nothing outside this package ever branches on a provider-specific payload.
package provider

import (
	"context"
	"time"
)

// ChatProvider is the interface all completion backends implement.
// Adding a backend requires only a new implementation plus registry entry;
// the reliability controller and orchestrator are unaffected.
type ChatProvider interface {
	// Complete sends the prompt and returns a normalized result.
	// Failures are returned as *Error with a Kind the caller can act on.
	// Implementations must honor ctx cancellation and deadlines.
	Complete(ctx context.Context, req Request) (*Result, error)

	// Name returns the provider identifier (e.g. "vendora", "openai").
	Name() string
}

// Request is a completion request after prompt composition.
type Request struct {
	// Prompt is the fully composed prompt (system prompt + user text).
	Prompt string

	// MaxTokens caps the reply length (0 = provider default).
	MaxTokens int

	// Temperature controls randomness (0 = provider default).
	Temperature float64
}

// Result is the normalized output of a provider call. It is transient:
// constructed per call, its fields flow into Message and UsageEvent records.
type Result struct {
	// Provider is the identifier of the backend that produced the reply.
	Provider string

	// Text is the reply text.
	Text string

	// TokensIn is the prompt token count reported by the backend.
	TokensIn int

	// TokensOut is the completion token count reported by the backend.
	TokensOut int

	// Latency is the observed call duration.
	Latency time.Duration
}

// ComposePrompt builds the prompt sent to a provider from the agent's
// system prompt and the user's text.
func ComposePrompt(systemPrompt, userText string) string {
	return "SYSTEM: " + systemPrompt + "\nUSER: " + userText
}
