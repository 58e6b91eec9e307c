package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedderDeterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "home loan")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "home loan")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "savings account")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, DefaultDimensions)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockEmbedderFixedVectors(t *testing.T) {
	m := NewMockEmbedder().WithVector("q", []float32{1, 0})

	vecs, err := m.EmbedTexts(context.Background(), []string{"q", "other"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Len(t, vecs[1], DefaultDimensions)

	m.Reset()
	assert.Zero(t, m.CallCount())
	v, err := m.EmbedText(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, v, DefaultDimensions)
}

func TestMockEmbedderInjectedError(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("service down")
	}

	_, err := m.EmbedText(context.Background(), "q")
	assert.Error(t, err)
	_, err = m.EmbedTexts(context.Background(), []string{"q"})
	assert.Error(t, err)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	assert.Equal(t, "mock-embed", p.Model())
	assert.NotNil(t, p.Embedder())

	mp := p.(*MockProvider)
	assert.Same(t, mp.GetMockEmbedder(), p.Embedder())
	require.NoError(t, p.Close())
	assert.True(t, mp.Closed())
}
