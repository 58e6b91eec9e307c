package mock

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/poiesic/factsearch/ai"
)

// DefaultDimensions is the vector size produced by the default behavior.
const DefaultDimensions = 64

// MockEmbedder is a test double for ai.Embedder.
// It is safe for concurrent use.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses fixed vectors registered with WithVector, then the
	// deterministic hash-based default.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, each text is embedded as EmbedText would.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions sets the size of generated vectors.
	Dimensions int

	mu        sync.RWMutex
	fixed     map[string][]float32
	callCount atomic.Int64
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Returns the concrete type so tests can inject behavior and inspect calls.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Dimensions: DefaultDimensions,
		fixed:      make(map[string][]float32),
	}
}

// WithVector registers the vector returned for text.
func (m *MockEmbedder) WithVector(text string, vec []float32) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed[text] = vec
	return m
}

// EmbedText returns the registered vector for text or a deterministic one.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return m.vectorFor(text), nil
}

// EmbedTexts embeds each text in order.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if m.EmbedTextFunc != nil {
			v, err := m.EmbedTextFunc(ctx, text)
			if err != nil {
				return nil, err
			}
			vectors[i] = v
			continue
		}
		vectors[i] = m.vectorFor(text)
	}
	return vectors, nil
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count, injected functions and registered vectors.
func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
	m.mu.Lock()
	clear(m.fixed)
	m.mu.Unlock()
}

func (m *MockEmbedder) vectorFor(text string) []float32 {
	m.mu.RLock()
	vec, ok := m.fixed[text]
	m.mu.RUnlock()
	if ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out
	}
	dims := m.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return generateDeterministicVector(text, dims)
}

// generateDeterministicVector creates a unit vector seeded by an FNV hash of
// text, so the same text always produces the same vector.
func generateDeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return ai.NormalizeVector(vector)
}
