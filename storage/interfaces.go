package storage

import (
	"context"

	"github.com/poiesic/factsearch/core"
)

// CorpusRepository persists the ordered (content, source) record list.
// Row ids are positions: the entry at row i is the i-th entry appended.
type CorpusRepository interface {
	// AddEntries appends entries to the corpus. Each entry's RowID must equal
	// the current Count plus its offset in the call, otherwise
	// core.ErrInvalidRowID is returned and nothing is written.
	AddEntries(ctx context.Context, entries ...core.CorpusEntry) error

	// GetEntry retrieves a single entry by row.
	// Returns ErrNotFound if the row doesn't exist.
	GetEntry(ctx context.Context, row int) (*core.CorpusEntry, error)

	// GetEntries retrieves multiple entries by row.
	// Returns only the entries that exist (no error for missing rows).
	GetEntries(ctx context.Context, rows ...int) ([]core.CorpusEntry, error)

	// ScanEntries returns up to limit entries starting at row from, in row order.
	ScanEntries(ctx context.Context, from, limit int) ([]core.CorpusEntry, error)

	// LoadEntries returns the whole corpus in row order.
	LoadEntries(ctx context.Context) ([]core.CorpusEntry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close releases resources held by the repository.
	Close() error
}

// VectorIndex answers nearest-neighbour queries over stored vectors.
// Implementations must support concurrent Search calls.
type VectorIndex interface {
	// Search returns up to k rows nearest to query, nearest first, with their
	// squared L2 distances. Equal distances are ordered by row id.
	Search(ctx context.Context, query []float32, k int) ([]core.Neighbor, error)

	// Len returns the number of indexed vectors.
	Len() int

	// Dimensions returns the vector size, or 0 for an empty index.
	Dimensions() int
}

// VectorRepository persists embeddings keyed by row id and produces a
// searchable index from them.
type VectorRepository interface {
	// PutVectors stores or replaces the vectors for the given rows.
	// All vectors must share the dimensionality of those already stored.
	PutVectors(ctx context.Context, embeddings ...core.Embedding) error

	// LoadIndex returns a VectorIndex over the stored vectors. The returned
	// index does not observe later writes.
	LoadIndex(ctx context.Context) (VectorIndex, error)

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// Clear removes every vector.
	Clear(ctx context.Context) error

	// Close releases resources held by the repository.
	Close() error
}

// ManifestRepository stores the description of the last index build.
type ManifestRepository interface {
	// SaveManifest replaces the stored manifest.
	SaveManifest(ctx context.Context, manifest *core.Manifest) error

	// LoadManifest returns the stored manifest.
	// Returns nil, nil if no manifest exists.
	LoadManifest(ctx context.Context) (*core.Manifest, error)
}
