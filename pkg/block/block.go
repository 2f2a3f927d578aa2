// Package block implements wildcard block descriptors and the antichain
// collections built on them.
//
// A Block names a namespace, a block name and a State of property
// constraints. Blocks are partially ordered by generality: a parent matches
// every concrete block its children match. A Collection keeps its members as
// an antichain under that order, so set operations respect the order rather
// than string equality.
//
// Canonical form:
//
//	minecraft:oak_stairs:facing=east,north:half=top
//
// Keys and values are sorted, so two descriptors are equal iff their
// canonical strings are equal.
package block

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultNamespace is assumed when a descriptor string omits the namespace.
const DefaultNamespace = "minecraft"

// ErrMalformed is returned when a descriptor string cannot be parsed.
var ErrMalformed = errors.New("malformed block descriptor")

// Block is a wildcard block descriptor. Blocks are values; every operation
// returns a new Block.
type Block struct {
	Namespace string
	Name      string
	State     State
}

// New returns a descriptor for namespace:name constrained by state.
func New(namespace, name string, state State) Block {
	return Block{Namespace: namespace, Name: name, State: state}
}

// Parse reads the canonical "namespace:name:key=v1,v2" form. The namespace
// may be omitted, in which case DefaultNamespace is used.
func Parse(s string) (Block, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Block{}, fmt.Errorf("%w: empty string", ErrMalformed)
	}
	parts := strings.Split(s, ":")

	props := make(map[string][]string)
	for len(parts) > 0 && strings.Contains(parts[len(parts)-1], "=") {
		last := parts[len(parts)-1]
		parts = parts[:len(parts)-1]

		key, vals, _ := strings.Cut(last, "=")
		if key == "" || vals == "" {
			return Block{}, fmt.Errorf("%w: bad property %q in %q", ErrMalformed, last, s)
		}
		if _, dup := props[key]; dup {
			return Block{}, fmt.Errorf("%w: duplicate property %q in %q", ErrMalformed, key, s)
		}
		values := strings.Split(vals, ",")
		for _, v := range values {
			if v == "" {
				return Block{}, fmt.Errorf("%w: empty value for %q in %q", ErrMalformed, key, s)
			}
		}
		props[key] = values
	}

	namespace := DefaultNamespace
	switch len(parts) {
	case 1:
	case 2:
		namespace = parts[0]
		parts = parts[1:]
	default:
		return Block{}, fmt.Errorf("%w: expected [namespace:]name in %q", ErrMalformed, s)
	}
	name := parts[0]
	if name == "" || namespace == "" {
		return Block{}, fmt.Errorf("%w: empty name in %q", ErrMalformed, s)
	}

	state, err := NewState(props)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return New(namespace, name, state), nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Block {
	b, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return b
}

// SameBase reports whether both descriptors name the same namespace:name.
func (b Block) SameBase(other Block) bool {
	return b.Namespace == other.Namespace && b.Name == other.Name
}

// IsParentOf reports whether b matches everything other matches.
// Equal descriptors are parents of each other.
func (b Block) IsParentOf(other Block) bool {
	return b.SameBase(other) && b.State.IsParentOf(other.State)
}

// IsChildOf reports whether other matches everything b matches.
func (b Block) IsChildOf(other Block) bool { return other.IsParentOf(b) }

// Intersect returns the descriptor matched by both b and other.
// It returns false when they share no concrete block.
func (b Block) Intersect(other Block) (Block, bool) {
	if !b.SameBase(other) {
		return Block{}, false
	}
	return b.WithState(other.State)
}

// WithState narrows b by additional constraints.
// It returns false when the constraints conflict with b's own.
func (b Block) WithState(state State) (Block, bool) {
	s, ok := b.State.Intersect(state)
	if !ok {
		return Block{}, false
	}
	return New(b.Namespace, b.Name, s), true
}

// WithoutState removes the part of b that falls inside state. For every
// property constrained by both, only the values outside state are kept.
// It returns false when b lies entirely inside state, and b unchanged when
// the two do not overlap.
func (b Block) WithoutState(state State) (Block, bool) {
	if b.State.IsChildOf(state) {
		return Block{}, false
	}
	if _, overlap := b.State.Intersect(state); !overlap {
		return b, true
	}
	props := make(map[string][]string, b.State.Len())
	for _, key := range b.State.keys {
		mine := b.State.values[key]
		theirs, ok := state.values[key]
		if !ok || isSubset(mine, theirs) {
			props[key] = mine
			continue
		}
		props[key] = differenceSets(mine, theirs)
	}
	s, err := NewState(props)
	if err != nil {
		return Block{}, false
	}
	return New(b.Namespace, b.Name, s), true
}

// Equal reports whether both descriptors have the same canonical form.
func (b Block) Equal(other Block) bool { return b.String() == other.String() }

// String returns the canonical form.
func (b Block) String() string {
	if b.State.Len() == 0 {
		return b.Namespace + ":" + b.Name
	}
	return b.Namespace + ":" + b.Name + ":" + b.State.String()
}
