package llm

import (
	"context"
)

// MockTextGenerator is a configurable TextGenerator for tests.
// Set the fields to control behavior.
type MockTextGenerator struct {
	// GenerateFunc is called when Generate is invoked.
	// If nil, Response and Err are returned.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	// Response and Err are the canned result when GenerateFunc is nil.
	Response string
	Err      error

	// CredentialsErr is returned by CheckCredentials.
	CredentialsErr error

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Call tracking for verification
	GenerateCalls int
	Prompts       []string
}

// NewMockTextGenerator returns a mock that answers every prompt with response.
func NewMockTextGenerator(response string) *MockTextGenerator {
	return &MockTextGenerator{Response: response, ModelName: "mock-model"}
}

// Generate implements TextGenerator.
func (m *MockTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.GenerateCalls++
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return m.Response, m.Err
}

// CheckCredentials implements TextGenerator.
func (m *MockTextGenerator) CheckCredentials() error {
	return m.CredentialsErr
}

// Model implements TextGenerator.
func (m *MockTextGenerator) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// LastPrompt returns the most recent prompt, or "" if none was sent.
func (m *MockTextGenerator) LastPrompt() string {
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}
