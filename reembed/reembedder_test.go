package reembed

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/factsearch/ai/mock"
	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/metrics"
)

func testConfig() *Config {
	return &Config{
		BatchSize:      10,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		Concurrency:    3,
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }},
		{"negative delay", func(c *Config) { c.RetryDelay = -time.Second }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestReembedder_Run(t *testing.T) {
	repos := setupTestDB(t)
	entries := seedEntries(t, repos, 45)
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = 8
	var progress bytes.Buffer
	r, err := NewReembedder(repos.corpus, repos.vectors, embedder, testConfig(), &progress,
		WithManifestRepository(repos.manifests, "mock-embed"))
	require.NoError(t, err)

	summary, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, summary.Entries)
	assert.Equal(t, 8, summary.Dimensions)
	assert.Equal(t, 5, embedder.CallCount(), "45 entries in batches of 10")

	count, err := repos.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, count)

	manifest, err := repos.manifests.LoadManifest(ctx)
	require.NoError(t, err)
	require.NotNil(t, manifest)
	assert.Equal(t, core.Fingerprint(entries), manifest.Fingerprint)
	assert.Equal(t, 45, manifest.Entries)
	assert.Equal(t, 45, manifest.Vectors)
	assert.Equal(t, 8, manifest.Dimensions)
	assert.Equal(t, "mock-embed", manifest.Model)

	assert.Contains(t, progress.String(), "Embedding 45 entries from row 0")
	assert.Contains(t, progress.String(), "Embedding complete")
}

func TestReembedder_RunReplacesDimensions(t *testing.T) {
	repos := setupTestDB(t)
	seedEntries(t, repos, 5)
	ctx := context.Background()

	old := mock.NewMockEmbedder()
	old.Dimensions = 4
	r, err := NewReembedder(repos.corpus, repos.vectors, old, testConfig(), nil)
	require.NoError(t, err)
	_, err = r.Run(ctx)
	require.NoError(t, err)

	// A model with a different vector size needs the old vectors dropped.
	replacement := mock.NewMockEmbedder()
	replacement.Dimensions = 6
	r, err = NewReembedder(repos.corpus, repos.vectors, replacement, testConfig(), nil)
	require.NoError(t, err)
	summary, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Dimensions)

	index, err := repos.vectors.LoadIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, index.Dimensions())
	assert.Equal(t, 5, index.Len())
}

func TestReembedder_EmbedFrom(t *testing.T) {
	repos := setupTestDB(t)
	seedEntries(t, repos, 12)
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	r, err := NewReembedder(repos.corpus, repos.vectors, embedder, testConfig(), nil)
	require.NoError(t, err)

	_, err = r.Embed(ctx, 0)
	require.NoError(t, err)

	seedEntries(t, repos, 7)
	embedder.Reset()
	summary, err := r.Embed(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Entries)
	assert.Equal(t, 1, embedder.CallCount())

	count, err := repos.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 19, count)
}

func TestReembedder_EmptyCorpus(t *testing.T) {
	repos := setupTestDB(t)
	var progress bytes.Buffer
	embedder := mock.NewMockEmbedder()
	r, err := NewReembedder(repos.corpus, repos.vectors, embedder, testConfig(), &progress,
		WithManifestRepository(repos.manifests, "mock-embed"))
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Entries)
	assert.Zero(t, embedder.CallCount())
	assert.Contains(t, progress.String(), "No entries to embed")

	manifest, err := repos.manifests.LoadManifest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, manifest)
	assert.Zero(t, manifest.Entries)
}

func TestReembedder_BatchFailure(t *testing.T) {
	repos := setupTestDB(t)
	seedEntries(t, repos, 30)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if strings.Contains(texts[0], "[10]") {
			return nil, errors.New("model overloaded")
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 0, 0}
		}
		return out, nil
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r, err := NewReembedder(repos.corpus, repos.vectors, embedder, testConfig(), nil, WithMetrics(m))
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EmbeddingRetries), "two retries before giving up")
}

func TestReembedder_Concurrency(t *testing.T) {
	repos := setupTestDB(t)
	seedEntries(t, repos, 100)

	var inFlight, peak atomic.Int32
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{0, 1}
		}
		return out, nil
	}

	cfg := testConfig()
	cfg.Concurrency = 2
	r, err := NewReembedder(repos.corpus, repos.vectors, embedder, cfg, nil)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, summary.Entries)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}
