package bake

import (
	"slices"
	"strings"
)

// FlagSet is an immutable set of flag names, kept sorted.
type FlagSet struct {
	names []string
}

// NewFlagSet returns the set of the given names.
func NewFlagSet(names ...string) FlagSet {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	return FlagSet{names: slices.Compact(sorted)}
}

// Names returns the names in sorted order.
func (f FlagSet) Names() []string { return slices.Clone(f.names) }

// Len returns the number of names.
func (f FlagSet) Len() int { return len(f.names) }

// Has reports whether name is in the set.
func (f FlagSet) Has(name string) bool {
	_, ok := slices.BinarySearch(f.names, name)
	return ok
}

// Union returns f ∪ other.
func (f FlagSet) Union(other FlagSet) FlagSet {
	return NewFlagSet(append(slices.Clone(f.names), other.names...)...)
}

// IsSubsetOf reports whether every name of f is in other.
func (f FlagSet) IsSubsetOf(other FlagSet) bool {
	for _, n := range f.names {
		if !other.Has(n) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same names.
func (f FlagSet) Equal(other FlagSet) bool { return slices.Equal(f.names, other.names) }

// Key is a canonical map key for the set.
func (f FlagSet) Key() string { return strings.Join(f.names, "\x00") }

func (f FlagSet) String() string {
	return "{" + strings.Join(f.names, ", ") + "}"
}
