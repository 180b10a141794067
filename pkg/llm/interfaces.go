// Package llm provides the text generation clients used by the prediction
// and natural-language query pipelines.
package llm

import (
	"context"
)

// TextGenerator sends a single prompt to a generative model and returns its
// raw text. Implementations make exactly one request per call: no streaming
// and no internal retry.
type TextGenerator interface {
	// Generate returns the model's raw response text.
	Generate(ctx context.Context, prompt string) (string, error)

	// CheckCredentials reports a configuration error (for example a missing
	// API key) without any network call.
	CheckCredentials() error

	// Model returns the configured model name.
	Model() string
}

// Ensure implementations satisfy TextGenerator at compile time.
var (
	_ TextGenerator = (*Client)(nil)
	_ TextGenerator = (*AnthropicClient)(nil)
	_ TextGenerator = (*MockTextGenerator)(nil)
)
