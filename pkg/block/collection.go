package block

import (
	"fmt"
	"strings"
)

// Collection is a set of descriptors kept as an antichain: no member is a
// parent of another. The zero value and a nil *Collection are empty.
//
// Insert, InsertAll, Remove and RemoveAll mutate the receiver and return it;
// Union, Difference, Intersection and SymmetricDifference return a new
// Collection and leave both operands untouched.
type Collection struct {
	blocks []Block
}

// NewCollection returns a collection holding blocks, normalized to an antichain.
func NewCollection(blocks ...Block) *Collection {
	return new(Collection).Insert(blocks...)
}

// ParseCollection parses each descriptor string and collects the results.
func ParseCollection(items []string) (*Collection, error) {
	c := new(Collection)
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		b, err := Parse(item)
		if err != nil {
			return nil, err
		}
		c.Insert(b)
	}
	return c, nil
}

// ParseFields parses a whitespace separated list of descriptors.
func ParseFields(s string) (*Collection, error) {
	return ParseCollection(strings.Fields(s))
}

// MustParseCollection is like ParseCollection but panics on error.
func MustParseCollection(items ...string) *Collection {
	c, err := ParseCollection(items)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of members.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.blocks)
}

// IsEmpty reports whether the collection has no members.
func (c *Collection) IsEmpty() bool { return c.Len() == 0 }

// Blocks returns a copy of the members in collection order.
func (c *Collection) Blocks() []Block {
	if c == nil {
		return nil
	}
	out := make([]Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Clone returns an independent copy.
func (c *Collection) Clone() *Collection {
	return &Collection{blocks: c.Blocks()}
}

// Insert adds blocks. A block already generalized by a member is dropped;
// members generalized by an inserted block are replaced by it, in place of
// the first such member.
func (c *Collection) Insert(blocks ...Block) *Collection {
	for _, b := range blocks {
		c.add(b)
	}
	return c
}

// InsertAll adds every member of other.
func (c *Collection) InsertAll(other *Collection) *Collection {
	if other == nil || other == c {
		return c
	}
	return c.Insert(other.blocks...)
}

// Remove subtracts blocks. Members that are children of a removed block are
// deleted; other members with the same base keep only their residue outside
// the removed block.
func (c *Collection) Remove(blocks ...Block) *Collection {
	for _, b := range blocks {
		c.discard(b)
	}
	return c
}

// RemoveAll subtracts every member of other.
func (c *Collection) RemoveAll(other *Collection) *Collection {
	if other == nil {
		return c
	}
	if other == c {
		c.blocks = nil
		return c
	}
	return c.Remove(other.blocks...)
}

// Union returns c ∪ other.
func (c *Collection) Union(other *Collection) *Collection {
	return c.Clone().InsertAll(other)
}

// Difference returns c − other.
func (c *Collection) Difference(other *Collection) *Collection {
	out := c.Clone()
	if other == nil {
		return out
	}
	return out.Remove(other.blocks...)
}

// Intersection returns the pairwise intersections of members of c and other.
func (c *Collection) Intersection(other *Collection) *Collection {
	out := new(Collection)
	if c == nil || other == nil {
		return out
	}
	for _, mine := range c.blocks {
		for _, theirs := range other.blocks {
			if both, ok := mine.Intersect(theirs); ok {
				out.add(both)
			}
		}
	}
	return out
}

// SymmetricDifference returns (c ∪ other) − (c ∩ other).
func (c *Collection) SymmetricDifference(other *Collection) *Collection {
	return c.Union(other).Difference(c.Intersection(other))
}

// Contains reports whether some member generalizes b.
func (c *Collection) Contains(b Block) bool {
	if c == nil {
		return false
	}
	for _, existing := range c.blocks {
		if existing.IsParentOf(b) {
			return true
		}
	}
	return false
}

// Covers reports whether every member of other is contained in c.
func (c *Collection) Covers(other *Collection) bool {
	for _, b := range other.Blocks() {
		if !c.Contains(b) {
			return false
		}
	}
	return true
}

// IsAntichain reports whether no member generalizes another.
func (c *Collection) IsAntichain() bool {
	for i, a := range c.Blocks() {
		for j, b := range c.blocks {
			if i != j && a.IsParentOf(b) {
				return false
			}
		}
	}
	return true
}

// Equal reports set equality of canonical forms, ignoring order.
func (c *Collection) Equal(other *Collection) bool {
	if c.Len() != other.Len() {
		return false
	}
	mine := make(map[string]struct{}, c.Len())
	for _, b := range c.Blocks() {
		mine[b.String()] = struct{}{}
	}
	for _, b := range other.Blocks() {
		if _, ok := mine[b.String()]; !ok {
			return false
		}
	}
	return true
}

// Strings returns the canonical form of every member in collection order.
func (c *Collection) Strings() []string {
	out := make([]string, c.Len())
	for i, b := range c.Blocks() {
		out[i] = b.String()
	}
	return out
}

// String returns the members' canonical forms separated by spaces.
func (c *Collection) String() string {
	return strings.Join(c.Strings(), " ")
}

// Summary returns a short human readable preview.
func (c *Collection) Summary() string {
	items := c.Strings()
	more := ""
	if len(items) > 4 {
		items = items[:4]
		more = "..."
	}
	return fmt.Sprintf("%s%s (%d items)", strings.Join(items, " "), more, c.Len())
}

func (c *Collection) add(b Block) {
	replaced := -1
	kept := c.blocks[:0:0]
	for _, existing := range c.blocks {
		if replaced < 0 && existing.IsParentOf(b) {
			return
		}
		if b.IsParentOf(existing) {
			if replaced < 0 {
				replaced = len(kept)
				kept = append(kept, b)
			}
			continue
		}
		kept = append(kept, existing)
	}
	if replaced < 0 {
		kept = append(kept, b)
	}
	c.blocks = kept
}

func (c *Collection) discard(b Block) {
	var residue []Block
	for _, existing := range c.blocks {
		if existing.IsChildOf(b) {
			continue
		}
		if existing.SameBase(b) {
			rest, ok := existing.WithoutState(b.State)
			if !ok {
				continue
			}
			existing = rest
		}
		residue = append(residue, existing)
	}
	c.blocks = nil
	for _, r := range residue {
		c.add(r)
	}
}
