package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same content produces same ID", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "bank_a.loans.home_loan.interest_rate: 10% per annum for salaried applicants"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, IDFromContent(tt.content), IDFromContent(tt.content))
		})
	}

	assert.NotEqual(t, IDFromContent("content1"), IDFromContent("content2"))
}

func TestFingerprint(t *testing.T) {
	entries := []CorpusEntry{
		{RowID: 0, Content: "Bank A home loan rate 10%", Source: "bank_a.home_loan.rate"},
		{RowID: 1, Content: "Bank B personal loan rate 12%", Source: "bank_b.personal_loan.rate"},
	}

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Fingerprint(entries), Fingerprint(entries))
	})

	t.Run("order sensitive", func(t *testing.T) {
		swapped := []CorpusEntry{
			{RowID: 0, Content: entries[1].Content, Source: entries[1].Source},
			{RowID: 1, Content: entries[0].Content, Source: entries[0].Source},
		}
		assert.NotEqual(t, Fingerprint(entries), Fingerprint(swapped))
	})

	t.Run("field boundaries matter", func(t *testing.T) {
		a := []CorpusEntry{{RowID: 0, Content: "ab", Source: "c"}}
		b := []CorpusEntry{{RowID: 0, Content: "a", Source: "bc"}}
		assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	})

	t.Run("prefix corpus differs", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint(entries), Fingerprint(entries[:1]))
	})
}

func TestValidateEntry(t *testing.T) {
	t.Run("valid entry", func(t *testing.T) {
		err := ValidateEntry(&CorpusEntry{RowID: 3, Content: "rate 10%"})
		assert.NoError(t, err)
	})

	t.Run("nil entry", func(t *testing.T) {
		err := ValidateEntry(nil)
		assert.ErrorIs(t, err, ErrInvalidEntry)
	})

	t.Run("empty content", func(t *testing.T) {
		err := ValidateEntry(&CorpusEntry{RowID: 0})
		assert.ErrorIs(t, err, ErrInvalidEntry)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("negative row", func(t *testing.T) {
		err := ValidateEntry(&CorpusEntry{RowID: -1, Content: "x"})
		assert.ErrorIs(t, err, ErrInvalidRowID)
	})
}

func TestValidateEntries(t *testing.T) {
	t.Run("contiguous rows", func(t *testing.T) {
		err := ValidateEntries([]CorpusEntry{
			{RowID: 0, Content: "a"},
			{RowID: 1, Content: "b"},
		})
		assert.NoError(t, err)
	})

	t.Run("empty corpus", func(t *testing.T) {
		assert.NoError(t, ValidateEntries(nil))
	})

	t.Run("gap in rows", func(t *testing.T) {
		err := ValidateEntries([]CorpusEntry{
			{RowID: 0, Content: "a"},
			{RowID: 2, Content: "b"},
		})
		assert.ErrorIs(t, err, ErrInvalidRowID)
	})
}

func TestValidateEmbeddings(t *testing.T) {
	dims, err := ValidateEmbeddings([]Embedding{
		{RowID: 0, Vector: []float32{1, 0, 0}},
		{RowID: 1, Vector: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, dims)

	_, err = ValidateEmbeddings([]Embedding{
		{RowID: 0, Vector: []float32{1, 0, 0}},
		{RowID: 1, Vector: []float32{0, 1}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	dims, err = ValidateEmbeddings(nil)
	require.NoError(t, err)
	assert.Zero(t, dims)
}

func TestManifestMUS(t *testing.T) {
	m := Manifest{
		Fingerprint: IDFromContent("corpus"),
		Entries:     42,
		Vectors:     41,
		Dimensions:  768,
		Model:       "nomic-embed-text",
		BuiltAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	buf := make([]byte, ManifestMUS.Size(m))
	ManifestMUS.Marshal(m, buf)

	got, n, err := ManifestMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, m, got)
}
