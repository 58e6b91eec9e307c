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

// Package ranker scores keyword relevance with a length-normalized TF-IDF
// scheme in the Okapi family.
//
// Statistics are produced once by Fit and never modified afterwards. A
// corpus change is handled by fitting again and replacing the old value.
package ranker

import (
	"math"

	"github.com/poiesic/factsearch/text"
)

const (
	saturation   = 2.2
	lengthBase   = 1.2
	lengthWeight = 0.3
	idfSmoothing = 0.5
)

// Statistics holds the corpus-wide term statistics used for scoring.
// It is safe for concurrent use.
type Statistics struct {
	docFreqs     map[string]int
	docLengths   []int
	avgDocLength float64
	totalDocs    int
}

// Fit tokenizes every document and builds fresh statistics. Each distinct
// token counts once per document toward its document frequency.
func Fit(documents []string) *Statistics {
	stats := &Statistics{
		docFreqs:   make(map[string]int),
		docLengths: make([]int, len(documents)),
		totalDocs:  len(documents),
	}

	total := 0
	seen := make(map[string]struct{})
	for i, doc := range documents {
		tokens := text.Tokenize(doc)
		stats.docLengths[i] = len(tokens)
		total += len(tokens)

		clear(seen)
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			stats.docFreqs[tok]++
		}
	}

	if stats.totalDocs > 0 {
		stats.avgDocLength = float64(total) / float64(stats.totalDocs)
	}
	return stats
}

// Score returns one score per document, in input order, normalized so the
// best document scores 1. A batch with no matches is returned as all zeros.
func (s *Statistics) Score(query string, documents []string) []float64 {
	scores := make([]float64, len(documents))
	queryTokens := text.Tokenize(query)
	if len(queryTokens) == 0 || len(documents) == 0 {
		return scores
	}

	maxScore := 0.0
	for i, doc := range documents {
		docTokens := text.Tokenize(doc)
		termFreqs := make(map[string]int, len(docTokens))
		for _, tok := range docTokens {
			termFreqs[tok]++
		}

		score := 0.0
		for _, term := range queryTokens {
			tf, ok := termFreqs[term]
			if !ok {
				continue
			}
			score += float64(tf) * s.idf(term) * s.lengthNorm(len(docTokens))
		}
		scores[i] = score
		if score > maxScore {
			maxScore = score
		}
	}

	if maxScore > 0 {
		for i := range scores {
			scores[i] /= maxScore
		}
	}
	return scores
}

// idf is zero for terms never seen during Fit.
func (s *Statistics) idf(term string) float64 {
	df := s.docFreqs[term]
	if df == 0 {
		return 0
	}
	return math.Log(float64(s.totalDocs+1) / (float64(df) + idfSmoothing))
}

func (s *Statistics) lengthNorm(docLen int) float64 {
	if s.avgDocLength == 0 {
		return 1
	}
	return saturation / (lengthBase + lengthWeight*(float64(docLen)/s.avgDocLength))
}

// Documents returns the number of documents seen by Fit.
func (s *Statistics) Documents() int {
	return s.totalDocs
}

// AverageLength returns the mean token count across fitted documents.
func (s *Statistics) AverageLength() float64 {
	return s.avgDocLength
}

// DocumentFrequency returns how many fitted documents contain term.
// The term is matched after tokenization, so "Loan" and "loan" agree.
func (s *Statistics) DocumentFrequency(term string) int {
	tokens := text.Tokenize(term)
	if len(tokens) != 1 {
		return 0
	}
	return s.docFreqs[tokens[0]]
}

// DocumentLength returns the token count of the document at row, or -1 when
// row is out of range.
func (s *Statistics) DocumentLength(row int) int {
	if row < 0 || row >= len(s.docLengths) {
		return -1
	}
	return s.docLengths[row]
}

func (s *Statistics) VocabularySize() int {
	return len(s.docFreqs)
}
