// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxagent/api/schemas"
	"github.com/xkilldash9x/uxagent/internal/config"
)

// OpenAIClient implements schemas.LLMClient on top of a langchaingo model.
// Any OpenAI compatible endpoint works through cfg.Endpoint.
type OpenAIClient struct {
	model  llms.Model
	logger *zap.Logger
	config config.LLMConfig
}

var _ schemas.LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClient builds the langchaingo openai model from cfg.
func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.APITimeout}),
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai model: %w", err)
	}
	return newOpenAIClientWithModel(model, cfg, logger), nil
}

func newOpenAIClientWithModel(model llms.Model, cfg config.LLMConfig, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{model: model, config: cfg, logger: logger.Named("llm_client.openai")}
}

// Generate sends one system and one user message and returns the first choice.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	var messages []llms.MessageContent
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.UserPrompt))

	callOpts := []llms.CallOption{llms.WithTemperature(req.Options.Temperature)}
	maxTokens := req.Options.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	if maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(maxTokens))
	}
	if req.Options.ForceJSONFormat {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", fmt.Errorf("openai generation failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai API returned no choices")
	}

	choice := resp.Choices[0]
	c.logger.Info("LLM generation complete.",
		zap.Duration("duration", time.Since(start)),
		zap.String("stop_reason", choice.StopReason),
		zap.Any("usage", choice.GenerationInfo))
	return choice.Content, nil
}

// Close is a no-op.
func (c *OpenAIClient) Close() error { return nil }
