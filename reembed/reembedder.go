package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/poiesic/factsearch/ai"
	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/metrics"
	"github.com/poiesic/factsearch/storage"
)

// Config holds configuration for embedding runs.
type Config struct {
	// BatchSize is the number of entries sent to the embedder per call
	BatchSize int

	// ReportInterval is how often to report progress (number of entries)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Concurrency is the number of batches embedded at once
	Concurrency int

	// RequestsPerSecond caps embedding calls; 0 means unlimited
	RequestsPerSecond float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		Concurrency:    4,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("reembed config: BatchSize must be at least 1")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("reembed config: %w", ErrInvalidMaxAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("reembed config: RetryDelay cannot be negative")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("reembed config: Concurrency must be at least 1")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("reembed config: RequestsPerSecond cannot be negative")
	}
	return nil
}

// limiter returns the rate limiter described by the config, or nil.
func (c *Config) limiter() *rate.Limiter {
	if c.RequestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.RequestsPerSecond), max(c.Concurrency, 1))
}

// Summary describes a finished embedding run.
type Summary struct {
	Entries    int
	Dimensions int
	Elapsed    time.Duration
}

// Reembedder embeds corpus entries and keeps the index manifest current.
type Reembedder struct {
	corpus    storage.CorpusRepository
	vectors   storage.VectorRepository
	manifests storage.ManifestRepository
	model     string
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder)

// WithManifestRepository records a manifest for model after every run.
func WithManifestRepository(repo storage.ManifestRepository, model string) Option {
	return func(r *Reembedder) {
		r.manifests = repo
		r.model = model
	}
}

// WithMetrics records retried embedding calls on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reembedder) {
		r.metrics = m
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr); nil discards it.
func NewReembedder(
	corpus storage.CorpusRepository,
	vectors storage.VectorRepository,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
	opts ...Option,
) (*Reembedder, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		corpus:   corpus,
		vectors:  vectors,
		config:   config,
		progress: progress,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reembedder")

	r.processor = NewBatchProcessor(vectors, embedder, config.limiter(), config.MaxRetries, config.RetryDelay).
		OnRetry(func(attempt int, err error) {
			r.logger.Warn("embedding call failed, retrying", "attempt", attempt, "err", err)
			r.metrics.EmbeddingRetried()
		})

	return r, nil
}

// Run discards every stored vector and embeds the whole corpus again.
// Use it after changing the embedding model.
func (r *Reembedder) Run(ctx context.Context) (*Summary, error) {
	if err := r.vectors.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clearing vectors: %w", err)
	}
	return r.Embed(ctx, 0)
}

// Embed embeds every entry from row onwards, replacing any stored vectors
// for those rows, and then refreshes the manifest.
func (r *Reembedder) Embed(ctx context.Context, from int) (*Summary, error) {
	total, err := r.corpus.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	pending := max(total-from, 0)
	if pending == 0 {
		fmt.Fprintf(r.progress, "No entries to embed (%d in corpus)\n", total)
		summary := &Summary{}
		if err := r.writeManifest(ctx, 0); err != nil {
			return nil, err
		}
		return summary, nil
	}

	fmt.Fprintf(r.progress, "Embedding %d entries from row %d (batch size: %d, concurrency: %d)\n",
		pending, from, r.config.BatchSize, r.config.Concurrency)

	tracker := NewProgressTracker(r.progress, pending, r.config.ReportInterval)
	tracker.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	var dims atomic.Int64
	iterErr := NewEntryIterator(r.corpus, r.config.BatchSize).From(from).ForEach(gctx, func(batch []core.CorpusEntry) error {
		g.Go(func() error {
			d, err := r.processor.Process(gctx, batch)
			if err != nil {
				return err
			}
			dims.Store(int64(d))
			tracker.Increment(len(batch))
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to process batch: %w", err)
	}
	if iterErr != nil {
		return nil, fmt.Errorf("failed to read entries: %w", iterErr)
	}

	tracker.Finish()

	summary := &Summary{
		Entries:    tracker.Current(),
		Dimensions: int(dims.Load()),
		Elapsed:    tracker.Elapsed(),
	}
	if err := r.writeManifest(ctx, summary.Dimensions); err != nil {
		return nil, err
	}

	fmt.Fprintf(r.progress, "Embedding complete. Processed %d entries in %v (%.1f entries/sec)\n",
		summary.Entries, summary.Elapsed.Round(time.Millisecond), float64(summary.Entries)/summary.Elapsed.Seconds())
	r.logger.Info("embedding run complete", "entries", summary.Entries, "dimensions", summary.Dimensions, "elapsed", summary.Elapsed)

	return summary, nil
}

// writeManifest records the fingerprint of the current corpus against the
// stored vectors. dims of 0 keeps the previously recorded dimensionality.
func (r *Reembedder) writeManifest(ctx context.Context, dims int) error {
	if r.manifests == nil {
		return nil
	}

	entries, err := r.corpus.LoadEntries(ctx)
	if err != nil {
		return fmt.Errorf("reading corpus for manifest: %w", err)
	}
	vectors, err := r.vectors.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting vectors for manifest: %w", err)
	}
	if dims == 0 {
		previous, err := r.manifests.LoadManifest(ctx)
		if err != nil {
			return fmt.Errorf("reading previous manifest: %w", err)
		}
		if previous != nil && vectors > 0 {
			dims = previous.Dimensions
		}
	}

	manifest := &core.Manifest{
		Fingerprint: core.Fingerprint(entries),
		Entries:     len(entries),
		Vectors:     vectors,
		Dimensions:  dims,
		Model:       r.model,
	}
	if err := r.manifests.SaveManifest(ctx, manifest); err != nil {
		return fmt.Errorf("saving manifest: %w", err)
	}
	return nil
}
