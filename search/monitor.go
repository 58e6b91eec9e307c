package search

import "github.com/poiesic/factsearch/core"

// SearchMonitor receives callbacks at each stage of a query.
// Callbacks run on the querying goroutine and must not retain the slices
// they are given.
type SearchMonitor interface {
	Start(query string)
	AfterNormalize(normalized string)
	AfterEmbedding(vector []float32)
	AfterVectorSearch(neighbors []core.Neighbor)
	DroppedStaleRows(rows []int)
	AfterKeywordScoring(candidates []core.ScoredCandidate)
	Finish(results []core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                               {}
func (n *noopMonitor) AfterNormalize(_ string)                      {}
func (n *noopMonitor) AfterEmbedding(_ []float32)                   {}
func (n *noopMonitor) AfterVectorSearch(_ []core.Neighbor)          {}
func (n *noopMonitor) DroppedStaleRows(_ []int)                     {}
func (n *noopMonitor) AfterKeywordScoring(_ []core.ScoredCandidate) {}
func (n *noopMonitor) Finish(_ []core.SearchResult)                 {}
