package ingestion

import "errors"

var (
	// ErrCorpusRepositoryRequired is returned when a corpus repository is not provided.
	ErrCorpusRepositoryRequired = errors.New("corpus repository required")

	// ErrVectorRepositoryRequired is returned when a vector repository is not provided.
	ErrVectorRepositoryRequired = errors.New("vector repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrUnexpectedShape is returned when bank data is neither a list of banks
	// nor an object with a "banks" list.
	ErrUnexpectedShape = errors.New(`expected a list of banks or an object with a "banks" key`)

	// ErrInvalidMapping is returned for a key mapping that is not a list of
	// [content, source] pairs.
	ErrInvalidMapping = errors.New("key mapping must be a list of [content, source] pairs")

	// ErrInvalidChunkOptions is returned when chunk overlap is not smaller
	// than chunk size.
	ErrInvalidChunkOptions = errors.New("chunk size must be positive and larger than overlap")
)
