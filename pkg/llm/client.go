package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client provides access to OpenAI-compatible chat completion endpoints,
// including Gemini's OpenAI compatibility layer.
type Client struct {
	client      *openai.Client
	endpoint    string
	model       string
	apiKey      string
	temperature float64
	logger      *zap.Logger
}

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint    string // Base URL, e.g. "https://generativelanguage.googleapis.com/v1beta/openai/"
	Model       string // Model name, e.g. "gemini-2.0-flash"
	APIKey      string // Checked by CheckCredentials, not by the constructor
	Temperature float64
	MaxTokens   int // Used by providers that require it
}

// NewClient creates a new OpenAI-compatible LLM client. A missing API key is
// not a construction error; it surfaces through CheckCredentials so callers
// can short-circuit with a sentinel result.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		logger:      logger.Named("llm"),
	}, nil
}

// Generate sends the prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.CheckCredentials(); err != nil {
		return "", err
	}

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", c.temperature))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(c.temperature),
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", c.parseError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{
			Type:     ErrorTypeResponse,
			Message:  "no choices in response",
			Model:    c.model,
			Endpoint: c.endpoint,
		}
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// CheckCredentials implements TextGenerator.
func (c *Client) CheckCredentials() error {
	if strings.TrimSpace(c.apiKey) == "" {
		return NewMissingAPIKeyError(c.model, c.endpoint)
	}
	return nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Endpoint returns the configured endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// parseError categorizes OpenAI API errors using the structured Error type.
func (c *Client) parseError(err error) error {
	llmErr := ClassifyError(err)
	if llmErr.Model == "" {
		llmErr.Model = c.model
	}
	if llmErr.Endpoint == "" {
		llmErr.Endpoint = c.endpoint
	}
	return llmErr
}
