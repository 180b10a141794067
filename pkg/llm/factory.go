package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/config"
)

// NewTextGenerator builds the generator selected by the LLM configuration.
func NewTextGenerator(cfg config.LLMConfig, logger *zap.Logger) (TextGenerator, error) {
	clientCfg := &Config{
		Endpoint:    cfg.Endpoint,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	switch cfg.Provider {
	case "", "openai":
		return NewClient(clientCfg, logger)
	case "anthropic":
		// The default endpoint points at Gemini; Anthropic uses its own unless overridden.
		if clientCfg.Endpoint == defaultGeminiEndpoint {
			clientCfg.Endpoint = ""
		}
		return NewAnthropicClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/openai/"
