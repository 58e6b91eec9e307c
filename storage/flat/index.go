// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package flat implements an exact in-memory nearest-neighbour index using
// squared L2 distance.
package flat

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/factsearch/ai"
	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/storage"
)

// Index is a brute-force vector index. Searches run concurrently; Add takes
// an exclusive lock.
type Index struct {
	mu   sync.RWMutex
	dims int
	rows []int
	vecs [][]float32
	pos  map[int]int
}

var _ storage.VectorIndex = (*Index)(nil)

// New creates an empty index. A dims of 0 lets the first Add decide.
func New(dims int) *Index {
	return &Index{
		dims: dims,
		pos:  make(map[int]int),
	}
}

// Add inserts or replaces vectors. Vectors are copied.
func (x *Index) Add(embeddings ...core.Embedding) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	dims := x.dims
	for _, e := range embeddings {
		if e.RowID < 0 {
			return fmt.Errorf("%w: %d", core.ErrInvalidRowID, e.RowID)
		}
		if dims == 0 {
			dims = len(e.Vector)
		}
		if len(e.Vector) != dims {
			return fmt.Errorf("%w: row %d has %d dimensions, index has %d",
				storage.ErrDimensionMismatch, e.RowID, len(e.Vector), dims)
		}
	}
	x.dims = dims

	for _, e := range embeddings {
		vec := slices.Clone(e.Vector)
		if i, ok := x.pos[e.RowID]; ok {
			x.vecs[i] = vec
			continue
		}
		x.pos[e.RowID] = len(x.rows)
		x.rows = append(x.rows, e.RowID)
		x.vecs = append(x.vecs, vec)
	}
	return nil
}

// Search returns the k nearest rows to query.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]core.Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.rows) == 0 {
		return []core.Neighbor{}, nil
	}
	if len(query) != x.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			storage.ErrDimensionMismatch, len(query), x.dims)
	}

	neighbors := make([]core.Neighbor, len(x.rows))
	for i, row := range x.rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		neighbors[i] = core.Neighbor{RowID: row, Distance: ai.SquaredL2(query, x.vecs[i])}
	}

	slices.SortFunc(neighbors, func(a, b core.Neighbor) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return a.RowID - b.RowID
		}
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Len returns the number of indexed vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.rows)
}

// Dimensions returns the vector size.
func (x *Index) Dimensions() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.rows) == 0 {
		return 0
	}
	return x.dims
}
