package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbeddingCountMismatch is returned when the provider answers a batch
	// with a different number of vectors than texts sent.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
)
