package tags

import (
	"errors"
	"testing"

	"github.com/duynguyendang/blockbaker/pkg/block"
	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fixed(items ...string) Supplier {
	return func() (*block.Collection, error) {
		return block.MustParseCollection(items...), nil
	}
}

func build(t *testing.T, b StateBuilder) *Tag {
	t.Helper()
	tag, err := b.Build()
	require.NoError(t, err)
	return tag
}

func TestStateTag(t *testing.T) {
	tests := []struct {
		name   string
		base   []string
		states []map[string]string
		want   []string
	}{
		{
			name:   "single pass",
			base:   []string{"oak_stairs"},
			states: []map[string]string{{"half": "bottom"}},
			want:   []string{"oak_stairs:half=bottom"},
		},
		{
			name:   "two passes",
			base:   []string{"oak_slab"},
			states: []map[string]string{{"type": "bottom"}, {"type": "top"}},
			want:   []string{"oak_slab:type=bottom", "oak_slab:type=top"},
		},
		{
			name:   "overlapping passes deduplicate",
			base:   []string{"oak_stairs"},
			states: []map[string]string{{"half": "top"}, {"half": "top", "facing": "north"}},
			want:   []string{"oak_stairs:half=top"},
		},
		{
			name:   "no passes",
			base:   []string{"oak_stairs"},
			states: nil,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewStateTag("test", fixed(tt.base...))
			for _, st := range tt.states {
				b = b.WithState(st)
			}
			tag := build(t, b)
			assert.Equal(t, KindState, tag.Kind())

			got, err := tag.Get()
			require.NoError(t, err)
			assert.True(t, block.MustParseCollection(tt.want...).Equal(got), "got %s", got)
		})
	}
}

func TestStateTagDropsConflicts(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	lib := New(nil, WithLogger(zap.New(core)))
	stairs, err := lib.CreateBool("stairs")
	require.NoError(t, err)
	require.NoError(t, stairs.Add(block.MustParseCollection("oak_stairs:half=top", "stone_stairs")))

	tag := build(t, NewStateTag("stairs/solid/bottom", lib.Supplier("stairs")).
		WithState(map[string]string{"half": "bottom"}))
	require.NoError(t, lib.RegisterMixin(tag))

	got, err := tag.Get()
	require.NoError(t, err)
	assert.True(t, block.MustParseCollection("stone_stairs:half=bottom").Equal(got))

	dropped := logs.FilterMessage("Block eliminated because of conflicting state").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "minecraft:oak_stairs:half=top", dropped[0].ContextMap()["block"])
	assert.Equal(t, "stairs/solid/bottom", dropped[0].ContextMap()["tag"])
}

func TestStateTagRecomputes(t *testing.T) {
	lib := New(nil)
	slab, err := lib.CreateBool("slab")
	require.NoError(t, err)
	tag := build(t, NewStateTag("slab/top", lib.Supplier("slab")).WithState(map[string]string{"type": "top"}))

	got, err := tag.Get()
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())

	require.NoError(t, slab.Add(block.MustParseCollection("oak_slab")))
	got, err = tag.Get()
	require.NoError(t, err)
	assert.True(t, block.MustParseCollection("oak_slab:type=top").Equal(got))
}

func TestStateBuilderIsImmutable(t *testing.T) {
	top := NewStateTag("t", fixed("oak_slab")).WithState(map[string]string{"type": "top"})
	both := top.WithState(map[string]string{"type": "bottom"})
	_ = top.WithState(map[string]string{"type": "double"})

	got, err := build(t, top).Get()
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	got, err = build(t, both).Get()
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())

	multi, err := build(t, NewStateTag("m", fixed("oak_slab")).
		WithStates(map[string][]string{"type": {"top", "bottom"}})).Get()
	require.NoError(t, err)
	assert.True(t, block.MustParseCollection("oak_slab:type=bottom,top").Equal(multi))
}

func TestStateTagSupplierError(t *testing.T) {
	boom := errors.New("boom")
	tag := build(t, NewStateTag("t", func() (*block.Collection, error) { return nil, boom }).
		WithState(map[string]string{"half": "top"}))
	_, err := tag.Get()
	assert.ErrorIs(t, err, boom)
}

func TestStateBuilderErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder StateBuilder
	}{
		{"empty value set", NewStateTag("t", fixed("oak_slab")).WithStates(map[string][]string{"type": {}})},
		{"empty value set before a valid pass", NewStateTag("t", fixed("oak_slab")).
			WithStates(map[string][]string{"type": nil}).
			WithState(map[string]string{"type": "top"})},
		{"nil supplier", NewStateTag("t", nil).WithState(map[string]string{"type": "top"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := tt.builder.Build()
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Nil(t, tag)
		})
	}
}
