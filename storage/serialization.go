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

package storage

import (
	"fmt"

	"github.com/poiesic/factsearch/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: id: %w", ErrSerializationFailed, err)
	}
	return id, nil
}

// MarshalEntry serializes a CorpusEntry to bytes.
func MarshalEntry(entry *core.CorpusEntry) []byte {
	buf := make([]byte, core.CorpusEntryMUS.Size(*entry))
	core.CorpusEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalEntry deserializes a CorpusEntry from bytes.
func UnmarshalEntry(data []byte) (*core.CorpusEntry, error) {
	entry, n, err := core.CorpusEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: corpus entry: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: corpus entry: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &entry, nil
}

// MarshalEmbedding serializes an Embedding to bytes.
func MarshalEmbedding(embedding *core.Embedding) []byte {
	buf := make([]byte, core.EmbeddingMUS.Size(*embedding))
	core.EmbeddingMUS.Marshal(*embedding, buf)
	return buf
}

// UnmarshalEmbedding deserializes an Embedding from bytes.
func UnmarshalEmbedding(data []byte) (*core.Embedding, error) {
	embedding, n, err := core.EmbeddingMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: embedding: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &embedding, nil
}

// MarshalManifest serializes a Manifest to bytes.
func MarshalManifest(manifest *core.Manifest) []byte {
	buf := make([]byte, core.ManifestMUS.Size(*manifest))
	core.ManifestMUS.Marshal(*manifest, buf)
	return buf
}

// UnmarshalManifest deserializes a Manifest from bytes.
func UnmarshalManifest(data []byte) (*core.Manifest, error) {
	manifest, _, err := core.ManifestMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrSerializationFailed, err)
	}
	return &manifest, nil
}
