package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockName is the registry name of the AWS Bedrock provider.
const BedrockName = "bedrock"

const defaultBedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"

// BedrockClient is the subset of the Bedrock runtime SDK the adapter uses.
type BedrockClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Bedrock adapts the AWS Bedrock Converse API to ChatProvider.
type Bedrock struct {
	client BedrockClient
	model  string
}

// NewBedrock creates a Bedrock provider using the default AWS credential
// chain for the given region.
func NewBedrock(ctx context.Context, region, model string) (*Bedrock, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewBedrockWithClient(bedrockruntime.NewFromConfig(cfg), model), nil
}

// NewBedrockWithClient creates a Bedrock provider with a custom client
// (useful for testing).
func NewBedrockWithClient(client BedrockClient, model string) *Bedrock {
	if model == "" {
		model = defaultBedrockModel
	}
	return &Bedrock{client: client, model: model}
}

// Name returns "bedrock".
func (p *Bedrock) Name() string { return BedrockName }

// Complete sends the prompt via the Converse API and normalizes the result.
func (p *Bedrock) Complete(ctx context.Context, req Request) (*Result, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.model),
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		cfg := &brtypes.InferenceConfiguration{}
		if req.MaxTokens > 0 {
			cfg.MaxTokens = aws.Int32(int32(req.MaxTokens))
		}
		if req.Temperature > 0 {
			cfg.Temperature = aws.Float32(float32(req.Temperature))
		}
		input.InferenceConfig = cfg
	}

	start := time.Now()
	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, p.normalizeError(err)
	}

	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, NewTransient(BedrockName, 0, "unexpected output shape")
	}

	var text strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*brtypes.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}

	result := &Result{
		Provider: BedrockName,
		Text:     text.String(),
		Latency:  time.Since(start),
	}
	if out.Usage != nil {
		result.TokensIn = int(aws.ToInt32(out.Usage.InputTokens))
		result.TokensOut = int(aws.ToInt32(out.Usage.OutputTokens))
	}

	return result, nil
}

// normalizeError maps SDK exception types to the common taxonomy.
func (p *Bedrock) normalizeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(BedrockName, 0)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var throttled *brtypes.ThrottlingException
	if errors.As(err, &throttled) {
		return NewRateLimited(BedrockName, 0)
	}

	var unavailable *brtypes.ServiceUnavailableException
	var internal *brtypes.InternalServerException
	var notReady *brtypes.ModelNotReadyException
	if errors.As(err, &unavailable) || errors.As(err, &internal) || errors.As(err, &notReady) {
		return NewTransient(BedrockName, 500, "upstream server error")
	}

	var validation *brtypes.ValidationException
	var denied *brtypes.AccessDeniedException
	var notFound *brtypes.ResourceNotFoundException
	if errors.As(err, &validation) || errors.As(err, &denied) || errors.As(err, &notFound) {
		return NewFatal(BedrockName, 400, "request rejected by upstream")
	}

	return NewTransient(BedrockName, 0, "request failed")
}
