package flat

import (
	"context"
	"sync"
	"testing"

	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSearch(t *testing.T) {
	idx := New(0)
	require.NoError(t, idx.Add(
		core.Embedding{RowID: 0, Vector: []float32{1, 0}},
		core.Embedding{RowID: 1, Vector: []float32{0, 1}},
		core.Embedding{RowID: 2, Vector: []float32{-1, 0}},
	))

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 2, idx.Dimensions())

	got, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].RowID)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)
	assert.Equal(t, 1, got[1].RowID)
	assert.InDelta(t, 2, got[1].Distance, 1e-6)
}

func TestIndexSearchKLargerThanIndex(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Add(core.Embedding{RowID: 0, Vector: []float32{1, 0}}))

	got, err := idx.Search(context.Background(), []float32{0, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestIndexTiesOrderedByRow(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Add(
		core.Embedding{RowID: 5, Vector: []float32{0, 1}},
		core.Embedding{RowID: 2, Vector: []float32{0, -1}},
		core.Embedding{RowID: 9, Vector: []float32{0, 1}},
	))

	for range 5 {
		got, err := idx.Search(context.Background(), []float32{1, 0}, 3)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 5, 9}, []int{got[0].RowID, got[1].RowID, got[2].RowID})
	}
}

func TestIndexReplace(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Add(core.Embedding{RowID: 0, Vector: []float32{1, 0}}))
	require.NoError(t, idx.Add(core.Embedding{RowID: 0, Vector: []float32{0, 1}}))

	assert.Equal(t, 1, idx.Len())
	got, err := idx.Search(context.Background(), []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)
}

func TestIndexCopiesVectors(t *testing.T) {
	vec := []float32{1, 0}
	idx := New(2)
	require.NoError(t, idx.Add(core.Embedding{RowID: 0, Vector: vec}))
	vec[0] = -1

	got, err := idx.Search(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)
}

func TestIndexErrors(t *testing.T) {
	idx := New(2)

	err := idx.Add(core.Embedding{RowID: 0, Vector: []float32{1, 0, 0}})
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	err = idx.Add(core.Embedding{RowID: -1, Vector: []float32{1, 0}})
	assert.ErrorIs(t, err, core.ErrInvalidRowID)

	_, err = idx.Search(context.Background(), []float32{1, 0}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	got, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, idx.Add(core.Embedding{RowID: 0, Vector: []float32{1, 0}}))
	_, err = idx.Search(context.Background(), []float32{1}, 1)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestIndexConcurrentSearch(t *testing.T) {
	idx := New(2)
	for i := range 100 {
		require.NoError(t, idx.Add(core.Embedding{RowID: i, Vector: []float32{float32(i), 1}}))
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := idx.Search(context.Background(), []float32{50, 1}, 3)
			assert.NoError(t, err)
			assert.Equal(t, 50, got[0].RowID)
		}()
	}
	wg.Wait()
}
