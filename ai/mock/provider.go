package mock

import "github.com/poiesic/factsearch/ai"

// MockProvider is a test double for ai.AIProvider.
type MockProvider struct {
	embedder *MockEmbedder
	model    string
	closed   bool
}

// NewMockProvider creates a new mock provider with a default mock embedder.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use GetMockEmbedder() to access the concrete embedder.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{embedder: NewMockEmbedder(), model: "mock-embed"}
}

// NewMockProviderWithEmbedder creates a mock provider around embedder.
func NewMockProviderWithEmbedder(embedder *MockEmbedder, model string) ai.AIProvider {
	return &MockProvider{embedder: embedder, model: model}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Model returns the mock model name.
func (p *MockProvider) Model() string {
	return p.model
}

// Close marks the provider closed.
func (p *MockProvider) Close() error {
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	return p.closed
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}
