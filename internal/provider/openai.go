package provider

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIName is the registry name of the OpenAI provider.
const OpenAIName = "openai"

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient is the subset of the OpenAI SDK the adapter uses.
// Narrowed for testability.
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI adapts the OpenAI chat completions API to ChatProvider.
type OpenAI struct {
	client OpenAIClient
	model  string
}

// NewOpenAI creates an OpenAI provider with the default client.
func NewOpenAI(apiKey, model string) *OpenAI {
	return NewOpenAIWithClient(openai.NewClient(apiKey), model)
}

// NewOpenAIWithClient creates an OpenAI provider with a custom client
// (useful for testing).
func NewOpenAIWithClient(client OpenAIClient, model string) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: client, model: model}
}

// Name returns "openai".
func (p *OpenAI) Name() string { return OpenAIName }

// Complete sends the prompt as a single user message and normalizes the
// response and any API error.
func (p *OpenAI) Complete(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, p.normalizeError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewTransient(OpenAIName, 0, "empty choices in response")
	}

	return &Result{
		Provider:  OpenAIName,
		Text:      resp.Choices[0].Message.Content,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		Latency:   time.Since(start),
	}, nil
}

// normalizeError maps SDK errors to the common taxonomy. The SDK's error
// body is not forwarded verbatim.
func (p *OpenAI) normalizeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(OpenAIName, 0)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return NewRateLimited(OpenAIName, 0)
		case apiErr.HTTPStatusCode >= 500:
			return NewTransient(OpenAIName, apiErr.HTTPStatusCode, "upstream server error")
		default:
			return NewFatal(OpenAIName, apiErr.HTTPStatusCode, "request rejected by upstream")
		}
	}

	// Connection-level failures are retryable.
	return NewTransient(OpenAIName, 0, "request failed")
}
