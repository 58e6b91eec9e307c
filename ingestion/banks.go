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

package ingestion

import (
	"fmt"
	"strings"
)

// ChunkOptions controls how long values are split.
type ChunkOptions struct {
	// Size is the maximum number of words per chunk.
	Size int
	// Overlap is the number of words shared by consecutive chunks.
	Overlap int
}

// DefaultChunkOptions returns 200-word chunks overlapping by 50 words.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{Size: 200, Overlap: 50}
}

// Validate checks that chunking always advances.
func (o ChunkOptions) Validate() error {
	if o.Size <= 0 || o.Overlap < 0 || o.Overlap >= o.Size {
		return fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunkOptions, o.Size, o.Overlap)
	}
	return nil
}

// FlattenBanks flattens raw bank records. data is either a JSON list of bank
// objects or an object whose "banks" key holds that list. Each bank is
// flattened under bank_<name>, where name is bank_information.bank_name
// lower-cased with spaces replaced by underscores (Bank_<i> when missing).
// Non-object list items are skipped. Values longer than opts.Size words are
// replaced by overlapping chunks keyed <key>_chunk_<i>.
func FlattenBanks(data []byte, opts ChunkOptions) ([]Fact, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	value, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}

	var banks []any
	switch v := value.(type) {
	case []any:
		banks = v
	case map[string]any:
		list, ok := v["banks"].([]any)
		if !ok {
			return nil, ErrUnexpectedShape
		}
		banks = list
	default:
		return nil, ErrUnexpectedShape
	}

	var flat []Fact
	positions := make(map[string]int)
	for i, item := range banks {
		bank, ok := item.(map[string]any)
		if !ok {
			continue
		}
		prefix := "bank_" + bankName(bank, i)
		var facts []Fact
		flattenInto(&facts, prefix, bank)
		for _, f := range facts {
			// A repeated bank name overwrites earlier values in place.
			if pos, seen := positions[f.Key]; seen {
				flat[pos] = f
				continue
			}
			positions[f.Key] = len(flat)
			flat = append(flat, f)
		}
	}

	out := make([]Fact, 0, len(flat))
	for _, f := range flat {
		out = append(out, chunkFact(f, opts)...)
	}
	return out, nil
}

func bankName(bank map[string]any, i int) string {
	raw := fmt.Sprintf("Bank_%d", i)
	if info, ok := bank["bank_information"].(map[string]any); ok {
		if name, ok := info["bank_name"]; ok && name != nil {
			raw = scalarString(name)
		}
	}
	return strings.ReplaceAll(strings.ToLower(raw), " ", "_")
}

// chunkFact splits f's value into overlapping word windows when it exceeds
// opts.Size words.
func chunkFact(f Fact, opts ChunkOptions) []Fact {
	words := strings.Fields(f.Value)
	if len(words) <= opts.Size {
		return []Fact{f}
	}

	step := opts.Size - opts.Overlap
	var chunks []Fact
	for i, n := 0, 0; i < len(words); i, n = i+step, n+1 {
		end := min(i+opts.Size, len(words))
		chunks = append(chunks, Fact{
			Key:   fmt.Sprintf("%s_chunk_%d", f.Key, n),
			Value: strings.Join(words[i:end], " "),
		})
	}
	return chunks
}
