package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/poiesic/factsearch/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingServer answers /v1/embeddings with one vector per input whose
// first component is the input index.
func fakeEmbeddingServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), 1, 0},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestEmbedderAgainstCompatibleServer(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddingServer(t, &calls)
	defer srv.Close()

	provider, err := NewProvider(ai.NewConfig(
		ai.WithEmbeddingHost(srv.URL),
		ai.WithEmbeddingModel("test-embed"),
	))
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, "test-embed", provider.Model())

	vec, err := provider.Embedder().EmbedText(context.Background(), "home loan rate")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, vec)

	vecs, err := provider.Embedder().EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 1, 0}, vecs[1])
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL)))
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "query")
	assert.Error(t, err)
}

func TestNewProviderRejectsInvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{EmbeddingHost: "http://localhost:11434"})
	assert.Error(t, err)
}
