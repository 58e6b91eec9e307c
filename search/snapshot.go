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

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/ranker"
	"github.com/poiesic/factsearch/storage"
)

// snapshot is the immutable read-side state shared by concurrent queries.
type snapshot struct {
	entries     []core.CorpusEntry
	stats       *ranker.Statistics
	index       storage.VectorIndex
	rows        int
	corpusSize  int
	fingerprint core.ID
	loadedAt    time.Time
	// generation increases with every Load and scopes query cache keys.
	generation uint64
}

// Stats describes the loaded snapshot.
type Stats struct {
	Ready         bool
	Entries       int
	Vectors       int
	Rows          int
	Dimensions    int
	Vocabulary    int
	AverageLength float64
	Fingerprint   core.ID
	LoadedAt      time.Time
}

// Load reads the corpus and vector index, fits keyword statistics and makes
// the result visible to queries. It may be called again to pick up new data;
// in-flight queries finish against the previous snapshot. On error the
// previous snapshot, if any, stays in place.
func (s *Searcher) Load(ctx context.Context) error {
	snap, err := s.buildSnapshot(ctx)
	if err != nil {
		s.logger.Error("error loading snapshot", "err", err)
		s.metrics.Loaded(err, 0, 0)
		return err
	}

	s.mu.Lock()
	if s.snap != nil {
		snap.generation = s.snap.generation + 1
	}
	s.snap = snap
	if s.cache != nil {
		s.cache.Purge()
	}
	s.mu.Unlock()

	s.metrics.Loaded(nil, snap.corpusSize, snap.index.Len())
	s.logger.Info("snapshot loaded",
		"entries", snap.corpusSize,
		"vectors", snap.index.Len(),
		"rows", snap.rows,
		"vocabulary", snap.stats.VocabularySize())
	return nil
}

func (s *Searcher) buildSnapshot(ctx context.Context) (*snapshot, error) {
	entries, err := s.corpusRepository.LoadEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	if err := core.ValidateEntries(entries); err != nil {
		return nil, fmt.Errorf("validating corpus: %w", err)
	}

	index, err := s.vectorRepository.LoadIndex(ctx)
	if err != nil {
		return nil, err
	}

	rows := min(len(entries), index.Len())
	if len(entries) != index.Len() {
		s.logger.Warn("corpus and vector index sizes differ; serving the shorter range",
			"entries", len(entries), "vectors", index.Len(), "rows", rows)
	}

	fingerprint := core.Fingerprint(entries)
	s.checkManifest(ctx, fingerprint, index)

	serving := entries[:rows]
	documents := make([]string, len(serving))
	for i, e := range serving {
		documents[i] = e.Content
	}

	return &snapshot{
		entries:     serving,
		stats:       ranker.Fit(documents),
		index:       index,
		rows:        rows,
		corpusSize:  len(entries),
		fingerprint: fingerprint,
		loadedAt:    time.Now().UTC(),
	}, nil
}

// checkManifest warns when the stored manifest describes a different corpus
// or vector size than the one being loaded.
func (s *Searcher) checkManifest(ctx context.Context, fingerprint core.ID, index storage.VectorIndex) {
	if s.manifestRepository == nil {
		return
	}
	manifest, err := s.manifestRepository.LoadManifest(ctx)
	if err != nil {
		s.logger.Warn("error reading index manifest", "err", err)
		return
	}
	if manifest == nil {
		s.logger.Debug("no index manifest stored")
		return
	}
	if manifest.Fingerprint != fingerprint {
		s.logger.Warn("vector index was built for a different corpus",
			"manifestFingerprint", manifest.Fingerprint, "corpusFingerprint", fingerprint,
			"builtAt", manifest.BuiltAt)
	}
	if dims := index.Dimensions(); manifest.Dimensions != 0 && dims != 0 && manifest.Dimensions != dims {
		s.logger.Warn("vector index dimensions differ from manifest",
			"manifestDimensions", manifest.Dimensions, "indexDimensions", dims)
	}
}

// Stats returns a description of the loaded snapshot.
func (s *Searcher) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return Stats{}
	}
	return Stats{
		Ready:         true,
		Entries:       s.snap.corpusSize,
		Vectors:       s.snap.index.Len(),
		Rows:          s.snap.rows,
		Dimensions:    s.snap.index.Dimensions(),
		Vocabulary:    s.snap.stats.VocabularySize(),
		AverageLength: s.snap.stats.AverageLength(),
		Fingerprint:   s.snap.fingerprint,
		LoadedAt:      s.snap.loadedAt,
	}
}
