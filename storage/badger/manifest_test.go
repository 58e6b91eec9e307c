package badger

import (
	"context"
	"testing"

	"github.com/poiesic/factsearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRepository(t *testing.T) {
	_, _, manifests, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	got, err := manifests.LoadManifest(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	m := &core.Manifest{
		Fingerprint: core.Fingerprint(makeEntries(0, 3)),
		Entries:     3,
		Vectors:     3,
		Dimensions:  2,
		Model:       "mock-embed",
	}
	require.NoError(t, manifests.SaveManifest(ctx, m))
	assert.False(t, m.BuiltAt.IsZero())

	got, err = manifests.LoadManifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	m.Model = "other-embed"
	require.NoError(t, manifests.SaveManifest(ctx, m))
	got, err = manifests.LoadManifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "other-embed", got.Model)
}
