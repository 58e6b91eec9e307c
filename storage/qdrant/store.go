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

// Package qdrant stores corpus vectors in a Qdrant collection and serves
// nearest-neighbour queries from it.
//
// Point ids are corpus row ids. The collection uses Euclid distance; Qdrant
// reports plain L2 so Search squares it to match the flat index.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/storage"
)

// upsertBatch bounds the number of points per Upsert call.
const upsertBatch = 256

// Store implements storage.VectorRepository and storage.VectorIndex on top
// of a Qdrant collection.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	logger      *slog.Logger

	mu    sync.RWMutex
	dims  int
	count int
}

var (
	_ storage.VectorRepository = (*Store)(nil)
	_ storage.VectorIndex      = (*Store)(nil)
)

// New creates a Store connected to Qdrant at the given gRPC address.
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	s := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	s.conn = conn
	return s, nil
}

// NewWithClients creates a Store over existing gRPC clients.
func NewWithClients(points pb.PointsClient, collections pb.CollectionsClient, collection string) *Store {
	return &Store{
		points:      points,
		collections: collections,
		collection:  collection,
		logger:      slog.Default().With("component", "qdrant", "collection", collection),
	}
}

// Close closes the underlying gRPC connection, if the Store owns one.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Store) exists(ctx context.Context) (bool, error) {
	resp, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return false, fmt.Errorf("qdrant: check collection %s: %w", s.collection, err)
	}
	return resp.GetResult().GetExists(), nil
}

// ensureCollection creates the collection if it doesn't exist.
func (s *Store) ensureCollection(ctx context.Context, dims int) error {
	ok, err := s.exists(ctx)
	if err != nil || ok {
		return err
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", s.collection, err)
	}
	s.logger.Info("created collection", "dimensions", dims)
	return nil
}

// PutVectors upserts vectors with the row id as point id.
func (s *Store) PutVectors(ctx context.Context, embeddings ...core.Embedding) error {
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
	if err := s.ensureCollection(ctx, dims); err != nil {
		return err
	}

	wait := true
	for lo := 0; lo < len(embeddings); lo += upsertBatch {
		hi := min(lo+upsertBatch, len(embeddings))
		points := make([]*pb.PointStruct, 0, hi-lo)
		for _, e := range embeddings[lo:hi] {
			points = append(points, &pb.PointStruct{
				Id: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(e.RowID)}},
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}},
				},
			})
		}
		_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: s.collection,
			Wait:           &wait,
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
		}
	}
	return nil
}

// LoadIndex refreshes the cached size and returns the Store itself; queries
// always go to the live collection.
func (s *Store) LoadIndex(ctx context.Context) (storage.VectorIndex, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	dims := 0
	if n > 0 {
		info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
		if err != nil {
			return nil, fmt.Errorf("qdrant: collection info %s: %w", s.collection, err)
		}
		dims = int(info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	}

	s.mu.Lock()
	s.count = n
	s.dims = dims
	s.mu.Unlock()
	return s, nil
}

// Search returns the k nearest points as squared L2 distances.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]core.Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         query,
		Limit:          uint64(k),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	neighbors := make([]core.Neighbor, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		d := p.GetScore()
		neighbors = append(neighbors, core.Neighbor{
			RowID:    int(p.GetId().GetNum()),
			Distance: d * d,
		})
	}
	return neighbors, nil
}

// Len returns the point count observed by the last LoadIndex.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Dimensions returns the vector size observed by the last LoadIndex.
func (s *Store) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Count returns the exact number of points in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{CollectionName: s.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Clear drops the collection. The next PutVectors recreates it.
func (s *Store) Clear(ctx context.Context) error {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return err
	}
	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
		return fmt.Errorf("qdrant: delete collection %s: %w", s.collection, err)
	}
	s.mu.Lock()
	s.count, s.dims = 0, 0
	s.mu.Unlock()
	return nil
}
