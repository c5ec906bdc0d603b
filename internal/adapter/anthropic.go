package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/quorumhq/quorum/pkg/models"
)

// AnthropicAdapter invokes Claude models through the Anthropic SDK,
// either against the direct API or AWS Bedrock.
type AnthropicAdapter struct {
	client anthropic.Client
}

// AnthropicConfig configures an AnthropicAdapter.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// UseBedrock routes requests through AWS Bedrock instead of the API.
	UseBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g. "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// NewAnthropicAdapter creates an AnthropicAdapter.
func NewAnthropicAdapter(cfg AnthropicConfig) (*AnthropicAdapter, error) {
	var opts []option.RequestOption

	if cfg.UseBedrock {
		ctx := context.Background()

		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return &AnthropicAdapter{client: anthropic.NewClient(opts...)}, nil
}

// Invoke sends the prompt as a single user message and concatenates the
// text blocks of the reply.
func (a *AnthropicAdapter) Invoke(ctx context.Context, prompt string, opts InvokeOptions) models.Response {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if pre := stancePreamble(opts.Stance); pre != "" {
		params.System = []anthropic.TextBlockParam{{Text: pre}}
	}

	start := time.Now()
	resp, err := a.client.Messages.New(ctx, params)
	latency := time.Since(start)

	if err != nil {
		return a.classify(ctx, err, latency)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(variant.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return failure(models.ErrorMalformedOutput, false, latency,
			"anthropic returned no text content")
	}
	return success(text, latency)
}

// classify maps SDK errors to the failure taxonomy. API errors carry a
// status code; everything else is a transport failure.
func (a *AnthropicAdapter) classify(ctx context.Context, err error, latency time.Duration) models.Response {
	if ctx.Err() != nil || isContextErr(err) {
		return ctxFailure(err, latency)
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		class, transient := classifyStatus(apierr.StatusCode)
		return failure(class, transient, latency, "anthropic API error: %v", err)
	}

	return failure(models.ErrorUnreachable, true, latency, "anthropic: %v", err)
}

// String describes the adapter for logging.
func (a *AnthropicAdapter) String() string {
	return "anthropic"
}

// Verify AnthropicAdapter implements Adapter at compile time.
var _ Adapter = (*AnthropicAdapter)(nil)
