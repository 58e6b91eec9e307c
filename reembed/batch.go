package reembed

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/factsearch/ai"
	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/storage"
)

// BatchProcessor embeds batches of corpus entries and stores their vectors.
// It is safe for concurrent use when the embedder and repository are.
type BatchProcessor struct {
	vectors        storage.VectorRepository
	embedder       ai.Embedder
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
	onRetry        func(attempt int, err error)
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding API call
// retryBaseDelay: base delay for exponential backoff
// limiter paces embedding calls; nil means unlimited.
func NewBatchProcessor(
	vectors storage.VectorRepository,
	embedder ai.Embedder,
	limiter *rate.Limiter,
	maxRetries int,
	retryBaseDelay time.Duration,
) *BatchProcessor {
	return &BatchProcessor{
		vectors:        vectors,
		embedder:       embedder,
		limiter:        limiter,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// OnRetry registers fn to be called for every retried embedding call.
func (bp *BatchProcessor) OnRetry(fn func(attempt int, err error)) *BatchProcessor {
	bp.onRetry = fn
	return bp
}

// Process embeds the content of entries, unit-normalizes the vectors and
// stores them under each entry's row. Returns the vector dimensionality.
func (bp *BatchProcessor) Process(ctx context.Context, entries []core.CorpusEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Content
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		if bp.limiter != nil {
			if err := bp.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay, bp.onRetry)
	if err != nil {
		return 0, fmt.Errorf("embedding rows %d-%d: %w", entries[0].RowID, entries[len(entries)-1].RowID, err)
	}

	if len(vectors) != len(entries) {
		return 0, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(entries), len(vectors))
	}

	embeddings := make([]core.Embedding, len(entries))
	for i, entry := range entries {
		embeddings[i] = core.Embedding{
			RowID:  entry.RowID,
			Vector: ai.NormalizeVector(vectors[i]),
		}
	}

	if err := bp.vectors.PutVectors(ctx, embeddings...); err != nil {
		return 0, fmt.Errorf("storing vectors: %w", err)
	}

	return len(embeddings[0].Vector), nil
}
