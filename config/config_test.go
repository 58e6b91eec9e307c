package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.3, cfg.Search.KeywordWeight)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, 0.3, cfg.Search.Threshold)
	assert.Equal(t, 200, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 50, cfg.Ingestion.ChunkOverlap)
	assert.Equal(t, VectorBackendBadger, cfg.Storage.VectorBackend)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factsearch.yaml")
	data := `
storage:
  path: /var/lib/factsearch
embedding:
  host: http://embedder:8000
  model: all-mpnet-base-v2
  timeout: 5s
search:
  semanticWeight: 0.6
  keywordWeight: 0.4
  topK: 15
ingestion:
  retryDelay: 250ms
server:
  addr: ":9000"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/factsearch", cfg.Storage.Path)
	assert.Equal(t, "all-mpnet-base-v2", cfg.Embedding.Model)
	assert.Equal(t, 5*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 0.6, cfg.Search.SemanticWeight)
	assert.Equal(t, 15, cfg.Search.TopK)
	assert.Equal(t, 250*time.Millisecond, cfg.Ingestion.RetryDelay)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	// Untouched values keep their defaults.
	assert.Equal(t, 0.3, cfg.Search.Threshold)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())

	aiCfg := cfg.AIConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, "http://embedder:8000/v1", aiCfg.EmbeddingHost)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [unclosed"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FACTSEARCH_STORAGE_PATH", "/tmp/override")
	t.Setenv("FACTSEARCH_SEARCH_TOP_K", "3")
	t.Setenv("FACTSEARCH_SEARCH_THRESHOLD", "0")
	t.Setenv("FACTSEARCH_EMBEDDING_TIMEOUT", "2s")
	t.Setenv("FACTSEARCH_METRICS_ENABLED", "false")
	t.Setenv("FACTSEARCH_VECTOR_BACKEND", "qdrant")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override", cfg.Storage.Path)
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.Equal(t, 0.0, cfg.Search.Threshold)
	assert.Equal(t, 2*time.Second, cfg.Embedding.Timeout)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, VectorBackendQdrant, cfg.Storage.VectorBackend)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesMalformed(t *testing.T) {
	t.Setenv("FACTSEARCH_SEARCH_TOP_K", "ten")
	t.Setenv("FACTSEARCH_SEARCH_SEMANTIC_WEIGHT", "heavy")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FACTSEARCH_SEARCH_TOP_K")
	assert.Contains(t, err.Error(), "FACTSEARCH_SEARCH_SEMANTIC_WEIGHT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"weights do not sum to one", func(c *Config) { c.Search.KeywordWeight = 0.5 }, "search weights"},
		{"zero top k", func(c *Config) { c.Search.TopK = 0 }, "search.topK"},
		{"negative cache", func(c *Config) { c.Search.CacheSize = -1 }, "cacheSize"},
		{"overlap too large", func(c *Config) { c.Ingestion.ChunkOverlap = 200 }, "chunking"},
		{"zero concurrency", func(c *Config) { c.Ingestion.Concurrency = 0 }, "Concurrency"},
		{"missing model", func(c *Config) { c.Embedding.Model = "" }, "EmbeddingModel"},
		{"unknown backend", func(c *Config) { c.Storage.VectorBackend = "faiss" }, "vectorBackend"},
		{"qdrant without collection", func(c *Config) {
			c.Storage.VectorBackend = VectorBackendQdrant
			c.Qdrant.Collection = ""
		}, "qdrant"},
		{"missing path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"missing server addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("in-memory needs no path", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Path = ""
		cfg.Storage.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}

func TestSearchOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.SearchOptions(), 3)
	cfg.Search.PoolSize = 4
	assert.Len(t, cfg.SearchOptions(), 4)

	reembedCfg := cfg.ReembedConfig()
	require.NoError(t, reembedCfg.Validate())
	assert.Equal(t, cfg.Ingestion.BatchSize, reembedCfg.BatchSize)
	assert.Equal(t, 200, cfg.ChunkOptions().Size)
}
