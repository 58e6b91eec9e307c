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

// Package search implements hybrid retrieval over a fact corpus.
//
// A Searcher holds an immutable snapshot of the corpus, its keyword
// statistics and a vector index. Each query is normalized, embedded and
// matched against the index for twice the requested number of candidates.
// Candidates are then scored by the keyword ranker, and the two signals are
// fused with configurable weights:
//
//	fused = semanticWeight*similarity + keywordWeight*keywordScore
//
// Results are sorted by fused score (ties keep nearest-neighbour order),
// filtered by threshold, truncated to top_k and ranked from 1.
//
// Embedding or index failures are logged and yield an empty result rather
// than an error. Only ErrNotReady and invalid query options are returned to
// the caller.
package search
