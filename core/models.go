package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier.
// It is generated using BLAKE2b hashing of the identified content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Fingerprint hashes the ordered (content, source) pairs of a corpus.
// Two corpora share a fingerprint only if every row matches in order, so an
// index built against one corpus can be detected as stale for another.
func Fingerprint(entries []CorpusEntry) ID {
	h, _ := blake2b.New(8, nil)
	var row [8]byte
	for _, e := range entries {
		binary.BigEndian.PutUint64(row[:], uint64(e.RowID))
		h.Write(row[:])
		h.Write([]byte(e.Content))
		h.Write([]byte{0})
		h.Write([]byte(e.Source))
		h.Write([]byte{0})
	}
	return ID(binary.LittleEndian.Uint64(h.Sum(nil)))
}

// CorpusEntry is a single indexed fact.
// RowID is the entry's fixed position in the corpus and doubles as its row id
// in the vector index. Entries are never mutated once loaded.
type CorpusEntry struct {
	RowID   int
	Content string
	Source  string
}

// Embedding is the dense vector stored for a corpus row.
type Embedding struct {
	RowID  int
	Vector []float32
}

// Neighbor is a single vector index hit.
// Distance is the squared L2 distance between the query and the stored vector.
type Neighbor struct {
	RowID    int
	Distance float32
}

// ScoredCandidate is the per-query working state for one candidate row.
type ScoredCandidate struct {
	RowID              int
	SemanticSimilarity float64
	KeywordScore       float64
	FusedScore         float64
	Rank               int
}

// SearchResult is a ranked candidate joined with its corpus entry.
type SearchResult struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// Manifest describes the vector index persisted next to a corpus.
type Manifest struct {
	Fingerprint ID
	Entries     int
	Vectors     int
	Dimensions  int
	Model       string
	BuiltAt     time.Time
}
