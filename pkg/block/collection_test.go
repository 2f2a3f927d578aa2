package block

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionInsert(t *testing.T) {
	bc := MustParseCollection
	tests := []struct {
		name   string
		start  *Collection
		insert *Collection
		want   *Collection
	}{
		{"Distinct", bc("oak_stairs"), bc("birch_stairs"), bc("oak_stairs", "birch_stairs")},
		{"Duplicate", bc("oak_stairs", "birch_stairs"), bc("birch_stairs"), bc("oak_stairs", "birch_stairs")},
		{"Sibling States", bc("oak_stairs:half=bottom"), bc("oak_stairs:half=top"), bc("oak_stairs:half=bottom", "oak_stairs:half=top")},
		{"Child Dropped", bc("oak_stairs"), bc("oak_stairs:half=top"), bc("oak_stairs")},
		{"Parent Replaces", bc("oak_stairs:half=top", "stone"), bc("oak_stairs:half=top,bottom"), bc("oak_stairs:half=top,bottom", "stone")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start.InsertAll(tt.insert)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
			assert.True(t, got.IsAntichain())
		})
	}
}

func TestCollectionCollapse(t *testing.T) {
	c := NewCollection(MustParse("oak_stairs:half=bottom")).Union(MustParseCollection("oak_stairs:half=top"))
	require.Equal(t, 2, c.Len())

	c.Insert(MustParse("oak_stairs"))
	assert.Equal(t, []string{"minecraft:oak_stairs"}, c.Strings())
}

func TestCollectionInsertKeepsPosition(t *testing.T) {
	c := MustParseCollection("stone", "oak_stairs:half=top", "dirt", "oak_stairs:half=bottom")
	c.Insert(MustParse("oak_stairs"))
	want := []string{"minecraft:stone", "minecraft:oak_stairs", "minecraft:dirt"}
	if diff := cmp.Diff(want, c.Strings()); diff != "" {
		t.Errorf("Insert() order mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectionRemove(t *testing.T) {
	bc := MustParseCollection
	tests := []struct {
		name   string
		start  *Collection
		remove *Collection
		want   *Collection
	}{
		{"Unrelated", bc("oak_stairs"), bc("birch_stairs"), bc("oak_stairs")},
		{"Member", bc("oak_stairs", "birch_stairs"), bc("birch_stairs"), bc("oak_stairs")},
		{"Disjoint State", bc("oak_stairs:half=bottom"), bc("oak_stairs:half=top"), bc("oak_stairs:half=bottom")},
		{"One Of Siblings", bc("oak_stairs:half=bottom", "oak_stairs:half=top"), bc("oak_stairs:half=top"), bc("oak_stairs:half=bottom")},
		{"Children Of Removed", bc("oak_stairs:facing=north:half=top", "oak_stairs:facing=north:half=bottom"), bc("oak_stairs:half=bottom"), bc("oak_stairs:facing=north:half=top")},
		{"Residue", bc("oak_stairs:half=top,bottom"), bc("oak_stairs:half=top"), bc("oak_stairs:half=bottom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start.RemoveAll(tt.remove)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestCollectionAlgebra(t *testing.T) {
	bc := MustParseCollection
	a := bc("oak_stairs", "stone")
	b := bc("oak_stairs:half=top", "dirt")

	assert.True(t, a.Union(b).Equal(bc("oak_stairs", "stone", "dirt")))
	assert.True(t, a.Intersection(b).Equal(bc("oak_stairs:half=top")))
	assert.True(t, a.Difference(bc("stone")).Equal(bc("oak_stairs")))
	assert.True(t, bc("stone", "dirt").SymmetricDifference(bc("dirt", "sand")).Equal(bc("stone", "sand")))

	// operands untouched
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 2, b.Len())

	assert.True(t, bc("stone").Intersection(bc("dirt")).IsEmpty())
}

func TestCollectionSelfOperations(t *testing.T) {
	c := MustParseCollection("stone", "dirt")
	assert.Equal(t, 2, c.InsertAll(c).Len())
	assert.True(t, c.RemoveAll(c).IsEmpty())
}

func TestCollectionNil(t *testing.T) {
	var c *Collection
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.IsEmpty())
	assert.False(t, c.Contains(MustParse("stone")))
	assert.Equal(t, "", c.String())
	assert.True(t, c.Union(MustParseCollection("stone")).Equal(MustParseCollection("stone")))
}

func TestCollectionSummary(t *testing.T) {
	c := MustParseCollection("a", "b", "c", "d", "e")
	assert.Equal(t, "minecraft:a minecraft:b minecraft:c minecraft:d... (5 items)", c.Summary())
	assert.Equal(t, "minecraft:a (1 items)", MustParseCollection("a").Summary())
}

func TestParseFields(t *testing.T) {
	c, err := ParseFields("oak_stairs  birch_stairs:half=top\n")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = ParseFields("oak_stairs :=")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCollectionProperties(t *testing.T) {
	rng := newGen(42)
	for i := 0; i < 300; i++ {
		c := new(Collection)
		for j := 0; j < 12; j++ {
			if rng.Intn(3) == 0 {
				c.Remove(rng.block())
			} else {
				c.Insert(rng.block())
			}
			require.True(t, c.IsAntichain(), "antichain broken: %s", c)
		}

		x := rng.block()

		before := c.Clone()
		if c.Contains(x) {
			c.Insert(x)
			assert.True(t, c.Equal(before), "inserting a covered block must be a no-op")
		}

		once := c.Clone().Remove(x)
		twice := once.Clone().Remove(x)
		assert.True(t, once.Equal(twice), "remove must be idempotent: %s vs %s", once, twice)
	}
}

func TestCollectionEqualIgnoresOrder(t *testing.T) {
	a := MustParseCollection("stone", "dirt", "sand")
	b := MustParseCollection("sand", "stone", "dirt")
	assert.True(t, a.Equal(b))

	sa, sb := a.Strings(), b.Strings()
	sort.Strings(sa)
	sort.Strings(sb)
	assert.Equal(t, sa, sb)
}

// gen produces random descriptors over a small universe so that overlaps are common.
type gen struct {
	*rand.Rand
}

var (
	genNames  = []string{"oak_stairs", "stone"}
	genKeys   = []string{"facing", "half", "shape"}
	genValues = []string{"a", "b", "c"}
)

func newGen(seed int64) gen { return gen{rand.New(rand.NewSource(seed))} }

func (g gen) subset() []string {
	var out []string
	for len(out) == 0 {
		for _, v := range genValues {
			if g.Intn(2) == 0 {
				out = append(out, v)
			}
		}
	}
	return out
}

func (g gen) block() Block {
	props := make(map[string][]string)
	for _, k := range genKeys {
		if g.Intn(2) == 0 {
			props[k] = g.subset()
		}
	}
	return New(DefaultNamespace, genNames[g.Intn(len(genNames))], MustState(props))
}

// generalize returns a parent of b by dropping or widening constraints.
func (g gen) generalize(b Block) Block {
	props := b.State.Map()
	for k, vals := range props {
		switch g.Intn(3) {
		case 0:
			delete(props, k)
		case 1:
			props[k] = append(vals, g.subset()...)
		}
	}
	return New(b.Namespace, b.Name, MustState(props))
}
