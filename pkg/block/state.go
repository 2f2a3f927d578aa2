package block

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ErrEmptyValueSet is returned when a property is given no allowed values.
var ErrEmptyValueSet = errors.New("property has no allowed values")

// State is an immutable set of property constraints.
// Keys are kept sorted and every value set is sorted, deduplicated and non-empty.
// A key that is absent is unconstrained and matches any value.
// The zero value is the unconstrained state.
type State struct {
	keys   []string
	values map[string][]string
}

// NewState builds a canonical State from a property map.
func NewState(props map[string][]string) (State, error) {
	if len(props) == 0 {
		return State{}, nil
	}
	s := State{
		keys:   make([]string, 0, len(props)),
		values: make(map[string][]string, len(props)),
	}
	for key, vals := range props {
		set := canonicalSet(vals)
		if len(set) == 0 {
			return State{}, fmt.Errorf("%w: %s", ErrEmptyValueSet, key)
		}
		s.keys = append(s.keys, key)
		s.values[key] = set
	}
	sort.Strings(s.keys)
	return s, nil
}

// MustState is like NewState but panics on an empty value set.
// It is meant for static tables.
func MustState(props map[string][]string) State {
	s, err := NewState(props)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of constrained properties.
func (s State) Len() int { return len(s.keys) }

// Keys returns the constrained property names in sorted order.
func (s State) Keys() []string { return slices.Clone(s.keys) }

// Has reports whether the property is constrained.
func (s State) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Values returns the allowed values for a property.
func (s State) Values(key string) ([]string, bool) {
	v, ok := s.values[key]
	return slices.Clone(v), ok
}

// Map returns a mutable copy of the constraints.
func (s State) Map() map[string][]string {
	out := make(map[string][]string, len(s.keys))
	for _, k := range s.keys {
		out[k] = slices.Clone(s.values[k])
	}
	return out
}

// IsParentOf reports whether s is at least as general as other: every key
// constrained by s is also constrained by other, to a subset of s's values.
func (s State) IsParentOf(other State) bool {
	for _, key := range s.keys {
		theirs, ok := other.values[key]
		if !ok {
			return false
		}
		if !isSubset(theirs, s.values[key]) {
			return false
		}
	}
	return true
}

// IsChildOf reports whether other is at least as general as s.
func (s State) IsChildOf(other State) bool { return other.IsParentOf(s) }

// Intersect returns the constraints satisfied by both states.
// It returns false when some shared property has no common value.
func (s State) Intersect(other State) (State, bool) {
	if len(other.keys) == 0 {
		return s, true
	}
	if len(s.keys) == 0 {
		return other, true
	}
	out := State{values: make(map[string][]string, len(s.keys)+len(other.keys))}
	for _, key := range s.keys {
		mine := s.values[key]
		if theirs, ok := other.values[key]; ok {
			common := intersectSets(mine, theirs)
			if len(common) == 0 {
				return State{}, false
			}
			out.values[key] = common
		} else {
			out.values[key] = mine
		}
	}
	for _, key := range other.keys {
		if _, ok := out.values[key]; !ok {
			out.values[key] = other.values[key]
		}
	}
	out.keys = make([]string, 0, len(out.values))
	for key := range out.values {
		out.keys = append(out.keys, key)
	}
	sort.Strings(out.keys)
	return out, true
}

// Equal reports structural equality.
func (s State) Equal(other State) bool { return s.String() == other.String() }

// String renders the canonical form "k1=v1,v2:k2=v3".
func (s State) String() string {
	parts := make([]string, len(s.keys))
	for i, key := range s.keys {
		parts[i] = key + "=" + strings.Join(s.values[key], ",")
	}
	return strings.Join(parts, ":")
}

func canonicalSet(vals []string) []string {
	if len(vals) == 0 {
		return nil
	}
	set := slices.Clone(vals)
	sort.Strings(set)
	return slices.Compact(set)
}

// isSubset reports whether sorted a is contained in sorted b.
func isSubset(a, b []string) bool {
	if len(a) > len(b) {
		return false
	}
	j := 0
	for _, v := range a {
		for j < len(b) && b[j] < v {
			j++
		}
		if j == len(b) || b[j] != v {
			return false
		}
		j++
	}
	return true
}

func intersectSets(a, b []string) []string {
	var out []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func differenceSets(a, b []string) []string {
	var out []string
	j := 0
	for _, v := range a {
		for j < len(b) && b[j] < v {
			j++
		}
		if j < len(b) && b[j] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
