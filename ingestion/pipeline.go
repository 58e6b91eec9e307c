package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/factsearch/ai"
	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/metrics"
	"github.com/poiesic/factsearch/reembed"
	"github.com/poiesic/factsearch/storage"
	"github.com/poiesic/factsearch/text"
)

// Pipeline appends documents to the corpus and embeds them.
type Pipeline struct {
	corpusRepository   storage.CorpusRepository
	vectorRepository   storage.VectorRepository
	manifestRepository storage.ManifestRepository
	model              string
	embedConfig        *reembed.Config
	progress           io.Writer
	reembedder         *reembed.Reembedder
	metrics            *metrics.Metrics
	logger             *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithEmbedConfig sets batch size, retry, concurrency and rate limiting for
// the embedding stage.
// Default is reembed.DefaultConfig().
func WithEmbedConfig(cfg *reembed.Config) Option {
	return func(p *Pipeline) error {
		if cfg == nil {
			cfg = reembed.DefaultConfig()
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		p.embedConfig = cfg
		return nil
	}
}

// WithManifestRepository records an index manifest for model after every
// ingest.
func WithManifestRepository(repo storage.ManifestRepository, model string) Option {
	return func(p *Pipeline) error {
		p.manifestRepository = repo
		p.model = model
		return nil
	}
}

// WithMetrics records ingested entries and embedding retries on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// WithProgress writes embedding progress to w.
// Default discards progress output.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	corpusRepository storage.CorpusRepository,
	vectorRepository storage.VectorRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if corpusRepository == nil {
		return nil, ErrCorpusRepositoryRequired
	}
	if vectorRepository == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		corpusRepository: corpusRepository,
		vectorRepository: vectorRepository,
		embedConfig:      reembed.DefaultConfig(),
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	reembedOpts := []reembed.Option{
		reembed.WithLogger(p.logger),
		reembed.WithMetrics(p.metrics),
	}
	if p.manifestRepository != nil {
		reembedOpts = append(reembedOpts, reembed.WithManifestRepository(p.manifestRepository, p.model))
	}
	reembedder, err := reembed.NewReembedder(corpusRepository, vectorRepository, embedder,
		p.embedConfig, p.progress, reembedOpts...)
	if err != nil {
		return nil, err
	}
	p.reembedder = reembedder

	return p, nil
}

// Result describes a finished ingest.
type Result struct {
	// FirstRow is the row assigned to the first added entry.
	FirstRow int
	// Added is the number of entries appended to the corpus.
	Added int
	// Skipped counts documents whose content normalized to nothing.
	Skipped int
	// Dimensions is the size of the stored vectors.
	Dimensions int
}

// Ingest normalizes docs, appends them to the corpus after the existing rows
// and embeds the new rows. Documents with empty normalized content are
// skipped. If embedding fails the entries stay in the corpus without
// vectors; a later reembed run fills them in.
func (p *Pipeline) Ingest(ctx context.Context, docs []Document) (*Result, error) {
	start, err := p.corpusRepository.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting corpus: %w", err)
	}

	result := &Result{FirstRow: start}
	entries := make([]core.CorpusEntry, 0, len(docs))
	for _, doc := range docs {
		content := text.Normalize(doc.Content)
		if content == "" {
			result.Skipped++
			p.logger.Warn("skipping document with empty content", "source", doc.Source)
			continue
		}
		entries = append(entries, core.CorpusEntry{
			RowID:   start + len(entries),
			Content: content,
			Source:  text.Normalize(doc.Source),
		})
	}
	if len(entries) == 0 {
		return result, nil
	}

	if err := p.corpusRepository.AddEntries(ctx, entries...); err != nil {
		return nil, fmt.Errorf("storing entries: %w", err)
	}
	result.Added = len(entries)
	p.metrics.Ingested(len(entries))
	p.logger.Info("stored corpus entries", "added", len(entries), "firstRow", start, "skipped", result.Skipped)

	summary, err := p.reembedder.Embed(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("embedding new entries: %w", err)
	}
	result.Dimensions = summary.Dimensions

	return result, nil
}

// IngestFacts ingests flattened facts as "<key>: <value>" documents.
func (p *Pipeline) IngestFacts(ctx context.Context, facts []Fact) (*Result, error) {
	return p.Ingest(ctx, Documents(facts))
}

// Clear removes every corpus entry and vector.
func (p *Pipeline) Clear(ctx context.Context) error {
	if err := p.vectorRepository.Clear(ctx); err != nil {
		return fmt.Errorf("clearing vectors: %w", err)
	}
	if err := p.corpusRepository.Clear(ctx); err != nil {
		return fmt.Errorf("clearing corpus: %w", err)
	}
	p.logger.Info("cleared corpus and vectors")
	return nil
}

// Reembed replaces every vector using the pipeline's embedder.
func (p *Pipeline) Reembed(ctx context.Context) (*reembed.Summary, error) {
	return p.reembedder.Run(ctx)
}
