package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/factsearch/ai"
	"github.com/poiesic/factsearch/core"
	"github.com/poiesic/factsearch/metrics"
	"github.com/poiesic/factsearch/storage"
	"github.com/poiesic/factsearch/text"
)

const (
	// DefaultSemanticWeight is the share of the fused score taken from vector similarity.
	DefaultSemanticWeight = 0.7
	// DefaultKeywordWeight is the share of the fused score taken from keyword relevance.
	DefaultKeywordWeight = 0.3
	// DefaultTopK is the number of results returned when no override is given.
	DefaultTopK = 10
	// DefaultThreshold is the minimum fused score when no override is given.
	DefaultThreshold = 0.3

	// overfetch is the factor applied to top_k when querying the vector index.
	overfetch = 2

	weightTolerance = 1e-6
)

// Searcher runs hybrid vector and keyword retrieval over a loaded corpus.
// It is safe for concurrent use. Queries share a read lock; Load swaps in a
// new snapshot under the write lock.
type Searcher struct {
	corpusRepository   storage.CorpusRepository
	vectorRepository   storage.VectorRepository
	manifestRepository storage.ManifestRepository
	embedder           ai.Embedder
	semanticWeight     float64
	keywordWeight      float64
	defaultTopK        int
	defaultThreshold   float64
	pool               *ants.Pool
	cache              *lru.Cache[string, []core.SearchResult]
	metrics            *metrics.Metrics
	monitor            SearchMonitor
	logger             *slog.Logger

	mu   sync.RWMutex
	snap *snapshot
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithWeights sets the fusion weights for vector similarity and keyword
// relevance. Both must be non-negative and sum to 1.
// Default is 0.7 / 0.3.
func WithWeights(semantic, keyword float64) Option {
	return func(s *Searcher) error {
		if err := ValidateWeights(semantic, keyword); err != nil {
			return err
		}
		s.semanticWeight = semantic
		s.keywordWeight = keyword
		return nil
	}
}

// WithDefaults sets the top_k and threshold used when a query does not
// override them.
func WithDefaults(topK int, threshold float64) Option {
	return func(s *Searcher) error {
		if topK <= 0 {
			return ErrInvalidTopK
		}
		if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
			return ErrInvalidThreshold
		}
		s.defaultTopK = topK
		s.defaultThreshold = threshold
		return nil
	}
}

// WithPoolSize sets the number of workers used by BatchSearch.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Searcher) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithQueryCache caches up to size results keyed by normalized query, top_k
// and threshold. The cache is purged whenever a new snapshot is loaded.
// A size of 0 disables caching.
func WithQueryCache(size int) Option {
	return func(s *Searcher) error {
		if size <= 0 {
			s.cache = nil
			return nil
		}
		cache, err := lru.New[string, []core.SearchResult](size)
		if err != nil {
			return err
		}
		s.cache = cache
		return nil
	}
}

// WithMetrics records query and load outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) error {
		s.metrics = m
		return nil
	}
}

// WithMonitor sets the monitor used by Search. SearchWithMonitor overrides
// it per call.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		s.monitor = monitor
		return nil
	}
}

// WithManifestRepository enables the corpus fingerprint check on Load.
func WithManifestRepository(repo storage.ManifestRepository) Option {
	return func(s *Searcher) error {
		s.manifestRepository = repo
		return nil
	}
}

// ValidateWeights reports whether semantic and keyword are usable fusion weights.
func ValidateWeights(semantic, keyword float64) error {
	if semantic < 0 || keyword < 0 || math.IsNaN(semantic) || math.IsNaN(keyword) {
		return fmt.Errorf("%w: got %g / %g", ErrInvalidWeights, semantic, keyword)
	}
	if math.Abs(semantic+keyword-1) > weightTolerance {
		return fmt.Errorf("%w: got %g / %g", ErrInvalidWeights, semantic, keyword)
	}
	return nil
}

// NewSearcher creates a new searcher. The searcher answers ErrNotReady until
// Load succeeds.
func NewSearcher(
	corpusRepository storage.CorpusRepository,
	vectorRepository storage.VectorRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Searcher, error) {
	if corpusRepository == nil {
		return nil, ErrCorpusRepositoryRequired
	}
	if vectorRepository == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		corpusRepository: corpusRepository,
		vectorRepository: vectorRepository,
		embedder:         embedder,
		semanticWeight:   DefaultSemanticWeight,
		keywordWeight:    DefaultKeywordWeight,
		defaultTopK:      DefaultTopK,
		defaultThreshold: DefaultThreshold,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Release()
			return nil, err
		}
	}

	if s.pool == nil {
		pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
		if err != nil {
			return nil, err
		}
		s.pool = pool
	}
	if s.monitor == nil {
		s.monitor = &noopMonitor{}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search returns the corpus entries most relevant to query, best first.
// An empty slice means nothing cleared the threshold, or that the embedding
// provider or vector index failed; such failures are logged, not returned.
func (s *Searcher) Search(ctx context.Context, query string, opts ...QueryOption) ([]core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, nil, opts...)
}

// SearchWithMonitor is Search with per-stage callbacks delivered to monitor.
// A nil monitor falls back to the one set with WithMonitor.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, monitor SearchMonitor, opts ...QueryOption) ([]core.SearchResult, error) {
	start := time.Now()
	if monitor == nil {
		monitor = s.monitor
	}

	params, err := s.queryParams(opts)
	if err != nil {
		s.metrics.ObserveQuery(metrics.OutcomeInvalid, time.Since(start), 0)
		return nil, err
	}

	// The snapshot is immutable; a concurrent Load swaps in a new one
	// without waiting for this query.
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if snap == nil {
		s.metrics.ObserveQuery(metrics.OutcomeNotReady, time.Since(start), 0)
		return nil, ErrNotReady
	}

	monitor.Start(query)
	normalized := text.Normalize(query)
	monitor.AfterNormalize(normalized)

	key := cacheKey(snap.generation, normalized, params)
	if s.cache != nil {
		cached, ok := s.cache.Get(key)
		s.metrics.CacheLookup(ok)
		if ok {
			results := append([]core.SearchResult(nil), cached...)
			monitor.Finish(results)
			s.metrics.ObserveQuery(outcomeFor(results), time.Since(start), len(results))
			return results, nil
		}
	}

	results, err := s.run(ctx, snap, query, normalized, params, monitor)
	if err != nil {
		s.metrics.ObserveQuery(metrics.OutcomeUpstream, time.Since(start), 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		results = []core.SearchResult{}
		monitor.Finish(results)
		return results, nil
	}

	if s.cache != nil {
		s.cache.Add(key, append([]core.SearchResult(nil), results...))
	}
	monitor.Finish(results)
	s.metrics.ObserveQuery(outcomeFor(results), time.Since(start), len(results))
	return results, nil
}

// run executes one query against snap. A returned error is an upstream
// failure that has already been logged. Panics raised by the embedder, the
// vector index or a monitor are recovered and reported as errors.
func (s *Searcher) run(
	ctx context.Context,
	snap *snapshot,
	query, normalized string,
	params queryParams,
	monitor SearchMonitor,
) (results []core.SearchResult, err error) {
	if snap.rows == 0 {
		return []core.SearchResult{}, nil
	}

	stage := "embed"
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered panic during query", "query", query, "stage", stage, "panic", r)
			results, err = nil, fmt.Errorf("%w: %v", ErrQueryPanic, r)
		}
	}()

	vector, err := s.embedder.EmbedText(ctx, normalized)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "stage", stage, "err", err)
		return nil, err
	}
	if !finite(vector) {
		err := ErrNonFiniteEmbedding
		s.logger.Error("query embedding is not usable", "query", query, "stage", stage, "err", err)
		return nil, err
	}
	if dims := snap.index.Dimensions(); dims > 0 && len(vector) != dims {
		err := fmt.Errorf("%w: query has %d dimensions, index has %d", storage.ErrDimensionMismatch, len(vector), dims)
		s.logger.Error("query embedding does not match index", "query", query, "stage", "embed", "err", err)
		return nil, err
	}
	vector = ai.NormalizeVector(vector)
	monitor.AfterEmbedding(vector)

	stage = "vector_search"
	neighbors, err := snap.index.Search(ctx, vector, overfetch*params.topK)
	if err != nil {
		s.logger.Error("error querying vector index", "query", query, "stage", stage, "err", err)
		return nil, err
	}
	for _, n := range neighbors {
		if math.IsNaN(float64(n.Distance)) || math.IsInf(float64(n.Distance), 0) {
			err := fmt.Errorf("%w: distance for row %d", ErrNonFiniteDistance, n.RowID)
			s.logger.Error("vector index returned an unusable distance", "query", query, "stage", stage, "err", err)
			return nil, err
		}
	}
	monitor.AfterVectorSearch(neighbors)

	candidates := make([]core.ScoredCandidate, 0, len(neighbors))
	documents := make([]string, 0, len(neighbors))
	var stale []int
	for _, n := range neighbors {
		if n.RowID < 0 || n.RowID >= snap.rows {
			stale = append(stale, n.RowID)
			continue
		}
		candidates = append(candidates, core.ScoredCandidate{
			RowID:              n.RowID,
			SemanticSimilarity: ai.DistanceToSimilarity(n.Distance),
		})
		documents = append(documents, snap.entries[n.RowID].Content)
	}
	if len(stale) > 0 {
		s.logger.Warn("vector index returned rows outside the corpus",
			"query", query, "stage", stage, "rows", stale, "corpusRows", snap.rows)
		s.metrics.StaleRows(len(stale))
		monitor.DroppedStaleRows(stale)
	}
	if len(candidates) == 0 {
		return []core.SearchResult{}, nil
	}

	stage = "keyword_scoring"
	keywordScores := snap.stats.Score(normalized, documents)
	for i := range candidates {
		candidates[i].KeywordScore = keywordScores[i]
		candidates[i].FusedScore = s.semanticWeight*candidates[i].SemanticSimilarity +
			s.keywordWeight*keywordScores[i]
	}
	monitor.AfterKeywordScoring(candidates)

	stage = "rank"
	return s.rank(snap, candidates, params), nil
}

// rank orders candidates by fused score, applies the threshold and top_k,
// and joins the survivors with their corpus entries.
func (s *Searcher) rank(snap *snapshot, candidates []core.ScoredCandidate, params queryParams) []core.SearchResult {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FusedScore > candidates[j].FusedScore
	})

	results := make([]core.SearchResult, 0, min(len(candidates), params.topK))
	for _, c := range candidates {
		// Written so that a NaN score never clears the threshold.
		if !(c.FusedScore >= params.threshold) {
			continue
		}
		if len(results) == params.topK {
			break
		}
		entry := snap.entries[c.RowID]
		results = append(results, core.SearchResult{
			Content:    entry.Content,
			Source:     entry.Source,
			Score:      c.FusedScore,
			Similarity: c.SemanticSimilarity,
			Rank:       len(results) + 1,
		})
	}
	return results
}

// BatchSearch runs queries concurrently on the searcher's worker pool.
// Results are returned in query order. The first ErrNotReady or option error
// aborts the batch.
func (s *Searcher) BatchSearch(ctx context.Context, queries []string, opts ...QueryOption) ([][]core.SearchResult, error) {
	if _, err := s.queryParams(opts); err != nil {
		return nil, err
	}
	if !s.Ready() {
		return nil, ErrNotReady
	}

	results := make([][]core.SearchResult, len(queries))
	errs := make([]error, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			results[i], errs[i] = s.Search(ctx, query, opts...)
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submitting query %d: %w", i, err)
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Ready reports whether a snapshot has been loaded.
func (s *Searcher) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap != nil
}

// Release releases the worker pool. The searcher should not be used after
// calling Release.
func (s *Searcher) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

func outcomeFor(results []core.SearchResult) string {
	if len(results) == 0 {
		return metrics.OutcomeEmpty
	}
	return metrics.OutcomeOK
}

func cacheKey(generation uint64, normalized string, params queryParams) string {
	return fmt.Sprintf("%d\x00%d\x00%g\x00%s", generation, params.topK, params.threshold, normalized)
}

// finite reports whether every component of v is a finite number.
func finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
