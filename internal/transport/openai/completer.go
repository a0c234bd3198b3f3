package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/metrics"
)

// Completer generates answers through the chat completions API.
type Completer struct {
	client *openai.Client
	model  string
	call   metrics.ProviderCall
	logger *zap.Logger
}

// NewCompleter creates an OpenAI-compatible chat completer.
func NewCompleter(cfg *Config) *Completer {
	return &Completer{
		client: newClient(cfg),
		model:  cfg.Model,
		call: metrics.ProviderCall{
			Provider:  providerName(cfg),
			Model:     cfg.Model,
			Operation: metrics.OpCompletion,
		},
		logger: loggerOrNop(cfg.Logger),
	}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		c.call.Failure("api_error")
		c.logger.Warn("Completion request failed", zap.String("model", c.model), zap.Error(err))
		return domain.CompletionResult{}, parseAPIError("completion", err)
	}

	if len(resp.Choices) == 0 {
		c.call.Failure("empty_response")
		return domain.CompletionResult{}, fmt.Errorf("completion response has no choices: %w", domain.ErrExternalService)
	}

	c.call.Success(start, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	choice := resp.Choices[0]
	return domain.CompletionResult{
		Text:             strings.TrimSpace(choice.Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		FinishReason:     string(choice.FinishReason),
	}, nil
}

// HealthCheck verifies the chat model is reachable via GetModel (free endpoint).
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.GetModel(ctx, c.model); err != nil {
		return fmt.Errorf("get model %s: %w", c.model, err)
	}
	return nil
}
