package store

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/duynguyendang/blockbaker/pkg/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()

	fs, err := NewFileStore(filepath.Join(t.TempDir(), "data"), false)
	require.NoError(t, err)

	plain, err := OpenBadgerStore(&Config{Backend: BackendBadger, InMemory: true}, nil)
	require.NoError(t, err)
	packed, err := OpenBadgerStore(&Config{Backend: BackendBadger, InMemory: true, Compression: true}, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		plain.Close()
		packed.Close()
	})
	return map[string]Storage{"fs": fs, "badger": plain, "badger-s2": packed}
}

func TestStorageContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Kind("stairs")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Create("stairs", KindBool))
			kind, ok, err := s.Kind("stairs")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, KindBool, kind)

			empty, ok, err := s.Load("stairs", BoolKey)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.True(t, empty.IsEmpty())

			blocks := block.MustParseCollection("oak_stairs:half=bottom", "minecraft:stone")
			require.NoError(t, s.Save("stairs", BoolKey, blocks))
			got, ok, err := s.Load("stairs", BoolKey)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.True(t, blocks.Equal(got))

			require.NoError(t, s.Create("color", KindEnum))
			require.NoError(t, s.Save("color", "red", block.MustParseCollection("red_wool")))
			require.NoError(t, s.Save("color", "blue", block.NewCollection()))
			kind, _, err = s.Kind("color")
			require.NoError(t, err)
			assert.Equal(t, KindEnum, kind)

			keys, err := s.Keys("color")
			require.NoError(t, err)
			assert.Equal(t, []string{"blue", "red"}, keys)

			keys, err = s.Keys("stairs")
			require.NoError(t, err)
			assert.Empty(t, keys)

			require.NoError(t, s.DeleteKey("color", "blue"))
			require.NoError(t, s.DeleteKey("color", "missing"))
			keys, err = s.Keys("color")
			require.NoError(t, err)
			assert.Equal(t, []string{"red"}, keys)

			_, ok, err = s.Load("color", "blue")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStorageHierarchy(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create("slab", KindBool))
			require.NoError(t, s.Create("wood/planks/oak", KindBool))

			kind, ok, err := s.Kind("wood/planks")
			require.NoError(t, err)
			assert.True(t, ok, "implicit parent location exists")
			assert.Equal(t, KindEnum, kind)

			tags, err := s.List()
			require.NoError(t, err)
			assert.Equal(t, []string{"slab", "wood", "wood/planks", "wood/planks/oak"}, tags)

			require.NoError(t, s.Delete("wood/planks"))
			tags, err = s.List()
			require.NoError(t, err)
			assert.Equal(t, []string{"slab", "wood"}, tags)

			_, ok, err = s.Kind("wood/planks/oak")
			require.NoError(t, err)
			assert.False(t, ok)

			err = s.Delete("wood/planks")
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
		})
	}
}

func TestSaveBoolKeyMarksBool(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save("glass", BoolKey, block.MustParseCollection("glass")))
			kind, ok, err := s.Kind("glass")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, KindBool, kind)

			// Re-creating as enum keeps the existing bool marker.
			require.NoError(t, s.Create("glass", KindEnum))
			kind, _, err = s.Kind("glass")
			require.NoError(t, err)
			assert.Equal(t, KindBool, kind)
		})
	}
}

func TestReadOnly(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, true)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Create("a", KindBool), ErrReadOnly)
	assert.ErrorIs(t, s.Save("a", BoolKey, nil), ErrReadOnly)
	assert.ErrorIs(t, s.DeleteKey("a", BoolKey), ErrReadOnly)
	assert.ErrorIs(t, s.Delete("a"), ErrReadOnly)
}

func TestFileStoreLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, false)
	require.NoError(t, err)

	require.NoError(t, s.Save("stairs", BoolKey, block.MustParseCollection("oak_stairs", "stone_stairs:half=top")))

	data, err := os.ReadFile(filepath.Join(dir, "stairs", "_bool.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "minecraft:oak_stairs\nminecraft:stone_stairs:half=top", string(data))

	// Tab separated cells and blank lines are accepted on read.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stairs", "_bool.tsv"),
		[]byte("oak_stairs\tbirch_stairs\n\nstone\n"), 0o644))
	got, ok, err := s.Load("stairs", BoolKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, block.MustParseCollection("oak_stairs", "birch_stairs", "stone").Equal(got))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "stairs", "_bool.tsv"), []byte("a:b:c"), 0o644))
	_, _, err = s.Load("stairs", BoolKey)
	assert.ErrorIs(t, err, block.ErrMalformed)

	// Hidden directories are not tags.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755))
	tags, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"stairs"}, tags)
}

func TestListMissingRoot(t *testing.T) {
	s := &FileStore{root: filepath.Join(t.TempDir(), "absent"), readOnly: true}
	tags, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"fs", Config{Backend: BackendFS, DataDir: "data"}, false},
		{"fs without dir", Config{Backend: BackendFS}, true},
		{"badger in memory", Config{Backend: BackendBadger, InMemory: true}, false},
		{"badger without dir", Config{Backend: BackendBadger}, true},
		{"memory", Config{Backend: BackendMemory}, false},
		{"unknown", Config{Backend: "s3"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(&Config{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(DefaultConfig(t.TempDir()), nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(&Config{Backend: BackendBadger, DataDir: t.TempDir(), SyncWrites: false}, nil)
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(&Config{Backend: "nope"}, nil)
	assert.Error(t, err)
}
