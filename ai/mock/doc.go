// Package mock provides test doubles for the ai interfaces.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder().
//	    WithVector("home loan", []float32{1, 0, 0})
//
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("service down")
//	}
//
//	count := embedder.CallCount()
//
// Without injected behavior MockEmbedder returns unit vectors derived from
// an FNV hash of the text, so identical text always embeds identically.
package mock
