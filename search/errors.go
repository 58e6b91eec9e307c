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

package search

import "errors"

var (
	// ErrCorpusRepositoryRequired is returned when a corpus repository is not provided.
	ErrCorpusRepositoryRequired = errors.New("corpus repository required")

	// ErrVectorRepositoryRequired is returned when a vector repository is not provided.
	ErrVectorRepositoryRequired = errors.New("vector repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrNotReady is returned by queries issued before the corpus and vector
	// index have been loaded.
	ErrNotReady = errors.New("searcher not ready: corpus and index not loaded")

	// ErrInvalidWeights is returned when fusion weights are negative or do
	// not sum to 1.
	ErrInvalidWeights = errors.New("fusion weights must be non-negative and sum to 1")

	// ErrInvalidTopK is returned for a non-positive result count.
	ErrInvalidTopK = errors.New("top_k must be positive")

	// ErrInvalidThreshold is returned for a threshold that is not a finite number.
	ErrInvalidThreshold = errors.New("threshold must be a finite number")

	// ErrNonFiniteEmbedding marks a query embedding containing NaN or Inf.
	ErrNonFiniteEmbedding = errors.New("query embedding contains non-finite values")

	// ErrNonFiniteDistance marks a vector index hit with a NaN or Inf distance.
	ErrNonFiniteDistance = errors.New("vector index returned a non-finite distance")

	// ErrQueryPanic wraps a panic recovered while answering a query.
	ErrQueryPanic = errors.New("query panicked")
)
