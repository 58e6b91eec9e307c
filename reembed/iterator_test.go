package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/factsearch/core"
)

func TestEntryIterator_Batches(t *testing.T) {
	repos := setupTestDB(t)
	seedEntries(t, repos, 25)

	var sizes []int
	var rows []int
	err := NewEntryIterator(repos.corpus, 10).ForEach(context.Background(), func(batch []core.CorpusEntry) error {
		sizes = append(sizes, len(batch))
		for _, e := range batch {
			rows = append(rows, e.RowID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 10, 5}, sizes)
	require.Len(t, rows, 25)
	for i, row := range rows {
		assert.Equal(t, i, row)
	}
}

func TestEntryIterator_ExactMultiple(t *testing.T) {
	repos := setupTestDB(t)
	seedEntries(t, repos, 20)

	batches := 0
	err := NewEntryIterator(repos.corpus, 10).ForEach(context.Background(), func(batch []core.CorpusEntry) error {
		batches++
		assert.Len(t, batch, 10)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, batches)
}

func TestEntryIterator_From(t *testing.T) {
	repos := setupTestDB(t)
	seedEntries(t, repos, 12)

	var rows []int
	err := NewEntryIterator(repos.corpus, 5).From(7).ForEach(context.Background(), func(batch []core.CorpusEntry) error {
		for _, e := range batch {
			rows = append(rows, e.RowID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8, 9, 10, 11}, rows)
}

func TestEntryIterator_Empty(t *testing.T) {
	repos := setupTestDB(t)

	called := false
	err := NewEntryIterator(repos.corpus, 0).ForEach(context.Background(), func([]core.CorpusEntry) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestEntryIterator_StopsOnError(t *testing.T) {
	repos := setupTestDB(t)
	seedEntries(t, repos, 30)

	boom := errors.New("boom")
	batches := 0
	err := NewEntryIterator(repos.corpus, 10).ForEach(context.Background(), func([]core.CorpusEntry) error {
		batches++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, batches)
}

func TestEntryIterator_ContextCanceled(t *testing.T) {
	repos := setupTestDB(t)
	seedEntries(t, repos, 30)

	ctx, cancel := context.WithCancel(context.Background())
	batches := 0
	err := NewEntryIterator(repos.corpus, 10).ForEach(ctx, func([]core.CorpusEntry) error {
		batches++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, batches)
}
