package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

const anthropicEndpoint = "https://api.anthropic.com/v1"

// AnthropicClient generates text with Anthropic's Messages API.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewAnthropicClient creates a Messages API client.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(cfg.APIKey, opts...),
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		logger:      logger.Named("llm"),
	}, nil
}

// Generate sends the prompt as a single user message.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.CheckCredentials(); err != nil {
		return "", err
	}

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	temperature := float32(c.temperature)

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		llmErr := ClassifyError(err)
		llmErr.Model = c.model
		llmErr.Endpoint = anthropicEndpoint
		return "", llmErr
	}

	text := extractText(resp)
	if text == "" {
		return "", &Error{
			Type:     ErrorTypeResponse,
			Message:  "no text content in response",
			Model:    c.model,
			Endpoint: anthropicEndpoint,
		}
	}

	c.logger.Info("LLM request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return text, nil
}

// CheckCredentials implements TextGenerator.
func (c *AnthropicClient) CheckCredentials() error {
	if strings.TrimSpace(c.apiKey) == "" {
		return NewMissingAPIKeyError(c.model, anthropicEndpoint)
	}
	return nil
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return c.model
}

func extractText(resp anthropic.MessagesResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}
	return sb.String()
}
