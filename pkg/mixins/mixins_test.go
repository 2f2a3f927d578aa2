package mixins

import (
	"testing"

	"github.com/duynguyendang/blockbaker/pkg/block"
	"github.com/duynguyendang/blockbaker/pkg/tags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func library(t *testing.T) *tags.Library {
	t.Helper()
	lib := tags.New(nil)
	stairs, err := lib.CreateBool("stairs")
	require.NoError(t, err)
	require.NoError(t, stairs.Add(block.MustParseCollection("oak_stairs")))
	slab, err := lib.CreateBool("slab")
	require.NoError(t, err)
	require.NoError(t, slab.Add(block.MustParseCollection("oak_slab")))
	require.NoError(t, RegisterAll(lib))
	return lib
}

func get(t *testing.T, lib *tags.Library, p string) *block.Collection {
	t.Helper()
	tag, err := lib.Get(p)
	require.NoError(t, err)
	assert.Equal(t, tags.KindState, tag.Kind())
	got, err := tag.Get()
	require.NoError(t, err)
	return got
}

func TestStairs(t *testing.T) {
	lib := library(t)

	assert.True(t, block.MustParseCollection("oak_stairs:half=bottom").Equal(get(t, lib, "stairs/solid/bottom")))
	assert.True(t, block.MustParseCollection("oak_stairs:half=top").Equal(get(t, lib, "stairs/solid/top")))

	north := get(t, lib, "stairs/solid/north")
	assert.Equal(t, 10, north.Len())
	assert.True(t, north.Contains(block.MustParse("oak_stairs:facing=north:half=top:shape=straight")))
	assert.True(t, north.Contains(block.MustParse("oak_stairs:facing=east:half=bottom:shape=inner_left")))
	assert.True(t, north.Contains(block.MustParse("oak_stairs:facing=west:half=top:shape=inner_right")))
	assert.False(t, north.Contains(block.MustParse("oak_stairs:facing=south:half=top:shape=straight")))
	assert.False(t, north.Contains(block.MustParse("oak_stairs:facing=west:half=top:shape=inner_left")))
}

func TestSlabs(t *testing.T) {
	lib := library(t)

	tests := []struct {
		path string
		want []string
	}{
		{"slab/bottom", []string{"oak_slab:type=bottom"}},
		{"slab/top", []string{"oak_slab:type=top"}},
		{"slab/half", []string{"oak_slab:type=bottom", "oak_slab:type=top"}},
		{"slab/double", []string{"oak_slab:type=double"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.True(t, block.MustParseCollection(tt.want...).Equal(get(t, lib, tt.path)))
		})
	}
}

func TestRegisteredPaths(t *testing.T) {
	lib := library(t)
	paths, err := lib.List()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"slab", "slab/bottom", "slab/double", "slab/half", "slab/top",
		"stairs", "stairs/solid/bottom", "stairs/solid/east", "stairs/solid/north",
		"stairs/solid/south", "stairs/solid/top", "stairs/solid/west",
	}, paths)
}
