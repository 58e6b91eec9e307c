package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/storage"
	"github.com/poiesic/factsearch/storage/flat"
)

// VectorRepository implements storage.VectorRepository for BadgerDB.
// Vectors are persisted by row and served through an in-memory flat index.
type VectorRepository struct {
	backend *Backend
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(backend *Backend) *VectorRepository {
	return &VectorRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *VectorRepository) Close() error {
	return nil
}

// PutVectors stores or replaces vectors by row.
func (r *VectorRepository) PutVectors(ctx context.Context, embeddings ...core.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	dims, err := core.ValidateEmbeddings(embeddings)
	if err != nil {
		return err
	}
	if dims == 0 {
		return fmt.Errorf("%w: empty vector for row %d", storage.ErrDimensionMismatch, embeddings[0].RowID)
	}

	for lo := 0; lo < len(embeddings); lo += entriesPerTxn {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+entriesPerTxn, len(embeddings))
		chunk := embeddings[lo:hi]
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			stored, err := readCounter(tx, vectorDims)
			if err != nil {
				return err
			}
			if stored == 0 {
				if err := tx.Set([]byte(vectorDims), encodeCount(dims)); err != nil {
					return err
				}
			} else if stored != dims {
				return fmt.Errorf("%w: store holds %d dimensions, got %d", storage.ErrDimensionMismatch, stored, dims)
			}
			for i := range chunk {
				if err := tx.Set(makeVectorKey(chunk[i].RowID), storage.MarshalEmbedding(&chunk[i])); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadIndex reads every stored vector into a new flat index.
func (r *VectorRepository) LoadIndex(ctx context.Context) (storage.VectorIndex, error) {
	var index *flat.Index
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		dims, err := readCounter(tx, vectorDims)
		if err != nil {
			return err
		}
		index = flat.New(dims)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		batch := make([]core.Embedding, 0, entriesPerTxn)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var embedding *core.Embedding
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				embedding, err = storage.UnmarshalEmbedding(val)
				return err
			}); err != nil {
				return err
			}
			batch = append(batch, *embedding)
			if len(batch) == cap(batch) {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := index.Add(batch...); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		return index.Add(batch...)
	}, false)
	if err != nil {
		return nil, fmt.Errorf("loading vector index: %w", err)
	}

	r.backend.logger.Debug("loaded vector index", "vectors", index.Len(), "dimensions", index.Dimensions())
	return index, nil
}

// Count returns the number of stored vectors.
func (r *VectorRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		n = countKeys(tx, vectorPrefix)
		return nil
	}, false)
	return n, err
}

// Clear removes every vector and forgets the stored dimensionality.
func (r *VectorRepository) Clear(ctx context.Context) error {
	return r.backend.DropFamily(ctx, vectorFamily)
}
