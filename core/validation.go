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

package core

import (
	"fmt"
)

// ValidateEntry validates a CorpusEntry according to domain rules.
//
// Validation rules:
//   - Content must not be empty
//   - RowID must not be negative
//
// Source is not validated; an entry without provenance is still searchable.
func ValidateEntry(entry *CorpusEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}

	if entry.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptyContent)
	}

	if entry.RowID < 0 {
		return fmt.Errorf("%w: %w: %d", ErrInvalidEntry, ErrInvalidRowID, entry.RowID)
	}

	return nil
}

// ValidateEntries validates a loaded corpus.
// Every entry must be valid and entry i must carry RowID i, since the row id
// is the join key with the vector index.
func ValidateEntries(entries []CorpusEntry) error {
	for i := range entries {
		if err := ValidateEntry(&entries[i]); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if entries[i].RowID != i {
			return fmt.Errorf("%w: %w: position %d holds row %d", ErrInvalidEntry, ErrInvalidRowID, i, entries[i].RowID)
		}
	}
	return nil
}

// ValidateEmbeddings checks that all vectors share one dimension and returns it.
// An empty slice has dimension 0.
func ValidateEmbeddings(embeddings []Embedding) (int, error) {
	dims := 0
	for i, e := range embeddings {
		if e.RowID < 0 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidRowID, e.RowID)
		}
		if i == 0 {
			dims = len(e.Vector)
			continue
		}
		if len(e.Vector) != dims {
			return 0, fmt.Errorf("%w: row %d has %d dimensions, expected %d", ErrDimensionMismatch, e.RowID, len(e.Vector), dims)
		}
	}
	return dims, nil
}
