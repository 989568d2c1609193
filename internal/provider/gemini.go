package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiName is the registry name of the Gemini provider.
const GeminiName = "gemini"

const defaultGeminiModel = "gemini-1.5-flash"

// Gemini adapts the Google Gen AI SDK to ChatProvider.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini provider using the Gemini API backend.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

// Name returns "gemini".
func (p *Gemini) Name() string { return GeminiName }

// Complete sends the prompt and normalizes the response.
func (p *Gemini) Complete(ctx context.Context, req Request) (*Result, error) {
	config := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}},
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, p.normalizeError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, NewTransient(GeminiName, 0, "no candidates in response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	result := &Result{
		Provider: GeminiName,
		Text:     text.String(),
		Latency:  time.Since(start),
	}
	if resp.UsageMetadata != nil {
		result.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		result.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return result, nil
}

// normalizeError maps SDK errors to the common taxonomy. The SDK does not
// expose structured status codes consistently, so classification falls back
// to message inspection the way upstream callers of this SDK do.
func (p *Gemini) normalizeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(GeminiName, 0)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit"):
		return NewRateLimited(GeminiName, 0)
	case strings.Contains(msg, "500") || strings.Contains(msg, "503") || strings.Contains(msg, "unavailable") || strings.Contains(msg, "internal"):
		return NewTransient(GeminiName, 500, "upstream server error")
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "permission") || strings.Contains(msg, "api key"):
		return NewFatal(GeminiName, 401, "authentication failed")
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid"):
		return NewFatal(GeminiName, 400, "request rejected by upstream")
	default:
		return NewTransient(GeminiName, 0, "request failed")
	}
}
