// Package bedrock generates answers with Anthropic Claude models on AWS Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/metrics"
)

const anthropicVersion = "bedrock-2023-05-31"

// invoker is the subset of the Bedrock runtime client the completer uses.
type invoker interface {
	InvokeModel(
		ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options),
	) (*bedrockruntime.InvokeModelOutput, error)
}

type claudeMessageRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float32         `json:"temperature"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeMessageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Completer implements domain.Completer via InvokeModel.
type Completer struct {
	client  invoker
	modelID string
	call    metrics.ProviderCall
	logger  *zap.Logger
}

// New loads the default AWS credential chain for region and returns a completer.
func New(ctx context.Context, region, modelID string, logger *zap.Logger) (*Completer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newCompleter(bedrockruntime.NewFromConfig(cfg), modelID, logger), nil
}

func newCompleter(client invoker, modelID string, logger *zap.Logger) *Completer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{
		client:  client,
		modelID: modelID,
		call: metrics.ProviderCall{
			Provider:  "bedrock",
			Model:     modelID,
			Operation: metrics.OpCompletion,
		},
		logger: logger,
	}
}

// Complete sends a single-turn Messages API request.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	body, err := json.Marshal(claudeMessageRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		System:           req.System,
		Messages:         []claudeMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("marshal claude request: %w", err)
	}

	start := time.Now()
	out, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		c.call.Failure("api_error")
		c.logger.Warn("Bedrock invocation failed", zap.String("model", c.modelID), zap.Error(err))
		return domain.CompletionResult{}, fmt.Errorf("invoke %s: %w: %w", c.modelID, domain.ErrExternalService, err)
	}

	var resp claudeMessageResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		c.call.Failure("decode_error")
		return domain.CompletionResult{}, fmt.Errorf("decode claude response: %w", domain.ErrExternalService)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		c.call.Failure("empty_response")
		return domain.CompletionResult{}, fmt.Errorf("claude response has no text: %w", domain.ErrExternalService)
	}

	c.call.Success(start, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	return domain.CompletionResult{
		Text:             strings.TrimSpace(text.String()),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		FinishReason:     resp.StopReason,
	}, nil
}
