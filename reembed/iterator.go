package reembed

import (
	"context"

	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/storage"
)

const (
	// DefaultBatchSize is the default number of entries to fetch in each batch
	DefaultBatchSize = 100
)

// EntryIterator pages through corpus entries in row order.
type EntryIterator struct {
	repo      storage.CorpusRepository
	batchSize int
	from      int
}

// NewEntryIterator creates a new entry iterator starting at row 0.
// batchSize: number of entries to fetch in each batch (must be > 0)
func NewEntryIterator(repo storage.CorpusRepository, batchSize int) *EntryIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &EntryIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// From makes the iterator start at row.
func (it *EntryIterator) From(row int) *EntryIterator {
	it.from = max(row, 0)
	return it
}

// ForEach calls fn with successive batches of entries until the corpus is
// exhausted. Iteration stops on the first error from fn.
// Context cancellation is checked between batches.
func (it *EntryIterator) ForEach(ctx context.Context, fn func([]core.CorpusEntry) error) error {
	from := it.from
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := it.repo.ScanEntries(ctx, from, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		if len(batch) < it.batchSize {
			return nil
		}
		from = batch[len(batch)-1].RowID + 1
	}
}
