package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/factsearch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_FileInsteadOfDirectory(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0o644))

	_, err := OpenBackend(tmpFile, false)
	assert.ErrorContains(t, err, "is not a directory")
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(func(tx *badger.Txn) error { return nil }, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, backend.DropFamily(context.Background(), corpusFamily), storage.ErrStorageClosed)
}

func TestWithTx(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	t.Run("committed write is visible", func(t *testing.T) {
		err := backend.WithTx(func(tx *badger.Txn) error {
			if err := tx.Set([]byte("k"), []byte("v")); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
		require.NoError(t, err)

		err = backend.WithTx(func(tx *badger.Txn) error {
			_, err := tx.Get([]byte("k"))
			return err
		}, false)
		assert.NoError(t, err)
	})

	t.Run("failed callback discards", func(t *testing.T) {
		err := backend.WithTx(func(tx *badger.Txn) error {
			if err := tx.Set([]byte("gone"), []byte("v")); err != nil {
				return err
			}
			return assert.AnError
		}, true)
		assert.Equal(t, assert.AnError, err)

		err = backend.WithTx(func(tx *badger.Txn) error {
			_, err := tx.Get([]byte("gone"))
			return err
		}, false)
		assert.ErrorIs(t, err, badger.ErrKeyNotFound)
	})
}

func TestRowKeysSortInRowOrder(t *testing.T) {
	a := makeEntryKey(255)
	b := makeEntryKey(256)
	assert.Less(t, string(a), string(b))

	row, err := parseRowKey(corpusPrefix, b)
	require.NoError(t, err)
	assert.Equal(t, 256, row)

	_, err = parseRowKey(corpusPrefix, []byte("corpus:x"))
	assert.Error(t, err)
}
