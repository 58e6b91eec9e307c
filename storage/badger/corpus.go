package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/storage"
)

// entriesPerTxn bounds the size of a single write transaction.
const entriesPerTxn = 1000

// CorpusRepository implements storage.CorpusRepository for BadgerDB.
type CorpusRepository struct {
	backend *Backend
}

var _ storage.CorpusRepository = (*CorpusRepository)(nil)

// NewCorpusRepository creates a new CorpusRepository.
func NewCorpusRepository(backend *Backend) *CorpusRepository {
	return &CorpusRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *CorpusRepository) Close() error {
	return nil
}

// AddEntries appends entries after the current last row.
func (r *CorpusRepository) AddEntries(ctx context.Context, entries ...core.CorpusEntry) error {
	if len(entries) == 0 {
		return nil
	}

	start, err := r.Count(ctx)
	if err != nil {
		return err
	}
	for i := range entries {
		if err := core.ValidateEntry(&entries[i]); err != nil {
			return err
		}
		if entries[i].RowID != start+i {
			return fmt.Errorf("%w: expected row %d, got %d", core.ErrInvalidRowID, start+i, entries[i].RowID)
		}
	}

	for lo := 0; lo < len(entries); lo += entriesPerTxn {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+entriesPerTxn, len(entries))
		chunk := entries[lo:hi]
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			count, err := readCounter(tx, corpusCount)
			if err != nil {
				return err
			}
			if count != chunk[0].RowID {
				return fmt.Errorf("%w: corpus grew to %d rows during append", core.ErrInvalidRowID, count)
			}
			for i := range chunk {
				if err := tx.Set(makeEntryKey(chunk[i].RowID), storage.MarshalEntry(&chunk[i])); err != nil {
					return err
				}
			}
			if err := tx.Set([]byte(corpusCount), encodeCount(count+len(chunk))); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return fmt.Errorf("appending rows %d-%d: %w", chunk[0].RowID, chunk[len(chunk)-1].RowID, err)
		}
	}

	r.backend.logger.Debug("appended corpus entries", "from", start, "count", len(entries))
	return nil
}

// GetEntry retrieves a single entry by row.
func (r *CorpusRepository) GetEntry(ctx context.Context, row int) (*core.CorpusEntry, error) {
	var result *core.CorpusEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEntry(tx, row)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetEntries retrieves the entries that exist among rows, in argument order.
func (r *CorpusRepository) GetEntries(ctx context.Context, rows ...int) ([]core.CorpusEntry, error) {
	var result []core.CorpusEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, row := range rows {
			entry, err := readEntry(tx, row)
			if err != nil {
				return err
			}
			if entry != nil {
				result = append(result, *entry)
			}
		}
		return nil
	}, false)
	return result, err
}

// ScanEntries returns up to limit entries starting at row from.
func (r *CorpusRepository) ScanEntries(ctx context.Context, from, limit int) ([]core.CorpusEntry, error) {
	if from < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: from=%d limit=%d", storage.ErrInvalidQuery, from, limit)
	}
	return r.scan(ctx, from, limit)
}

// LoadEntries returns the whole corpus in row order.
func (r *CorpusRepository) LoadEntries(ctx context.Context) ([]core.CorpusEntry, error) {
	return r.scan(ctx, 0, -1)
}

func (r *CorpusRepository) scan(ctx context.Context, from, limit int) ([]core.CorpusEntry, error) {
	results := []core.CorpusEntry{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(corpusPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeEntryKey(from)); iter.Valid(); iter.Next() {
			if limit >= 0 && len(results) >= limit {
				break
			}
			if len(results)%entriesPerTxn == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			item := iter.Item()
			row, err := parseRowKey(corpusPrefix, item.Key())
			if err != nil {
				return err
			}
			var entry *core.CorpusEntry
			if err := item.Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalEntry(val)
				return err
			}); err != nil {
				return err
			}
			if entry.RowID != row {
				return fmt.Errorf("%w: key row %d holds entry for row %d", core.ErrInvalidRowID, row, entry.RowID)
			}
			results = append(results, *entry)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of stored entries.
func (r *CorpusRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		n, err = readCounter(tx, corpusCount)
		return err
	}, false)
	return n, err
}

// Clear removes every entry.
func (r *CorpusRepository) Clear(ctx context.Context) error {
	return r.backend.DropFamily(ctx, corpusFamily)
}

// readEntry returns nil, nil when the row does not exist.
func readEntry(tx *badger.Txn, row int) (*core.CorpusEntry, error) {
	if row < 0 {
		return nil, nil
	}
	item, err := tx.Get(makeEntryKey(row))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry *core.CorpusEntry
	err = item.Value(func(val []byte) error {
		var err error
		entry, err = storage.UnmarshalEntry(val)
		return err
	})
	return entry, err
}
