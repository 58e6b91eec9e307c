package search

import "math"

// QueryOption overrides a per-query parameter.
type QueryOption func(*queryParams) error

type queryParams struct {
	topK      int
	threshold float64
}

// WithTopK limits the number of results. k must be positive.
func WithTopK(k int) QueryOption {
	return func(p *queryParams) error {
		if k <= 0 {
			return ErrInvalidTopK
		}
		p.topK = k
		return nil
	}
}

// WithThreshold sets the minimum fused score a result must reach.
// An explicit zero is honored.
func WithThreshold(threshold float64) QueryOption {
	return func(p *queryParams) error {
		if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
			return ErrInvalidThreshold
		}
		p.threshold = threshold
		return nil
	}
}

func (s *Searcher) queryParams(opts []QueryOption) (queryParams, error) {
	params := queryParams{
		topK:      s.defaultTopK,
		threshold: s.defaultThreshold,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&params); err != nil {
			return queryParams{}, err
		}
	}
	return params, nil
}
