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

// Package storage provides the storage abstraction layer for factsearch.
//
// It defines repository interfaces for the corpus record list, the vector
// store and the index manifest. Backends:
//
//   - storage/badger: embedded BadgerDB for corpus, vectors and manifest
//   - storage/flat: in-memory exact nearest-neighbour index
//   - storage/qdrant: remote Qdrant collection as the vector store
//
// # Row ids
//
// The corpus and the vector store share one key: the row id, which is the
// entry's position in the corpus. The two sides are expected to have equal
// cardinality. Readers treat a gap as a warning and work on the shorter
// range.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	corpus := badger.NewCorpusRepository(backend)
//	vectors := badger.NewVectorRepository(backend)
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
