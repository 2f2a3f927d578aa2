// Package bake partitions the blocks matched by a set of named flag
// expressions into disjoint masks.
//
// Every block matched by some flag ends up in exactly one mask, keyed by the
// exact set of flags that match it. Masks are numbered from 1 so that a
// shader can test flag membership with a short chain of id comparisons.
//
// The refinement is worst-case exponential in the number of overlapping
// flags; real flag sets overlap sparsely.
package bake

import (
	"fmt"

	"github.com/duynguyendang/blockbaker/pkg/block"
	"go.uber.org/zap"
)

// Flag is a named expression.
type Flag struct {
	Name       string `json:"name" validate:"required"`
	Expression string `json:"expression" validate:"required"`
}

// Evaluator evaluates flag expressions.
type Evaluator interface {
	Evaluate(src string) (*block.Collection, error)
}

// Mask is one cell of the partition.
type Mask struct {
	ID     int
	Flags  FlagSet
	Blocks *block.Collection
}

// Result is the baked partition.
type Result struct {
	// Flags holds the flag names in input order.
	Flags []string
	Masks []Mask
}

// IDs returns the ids of every mask whose key contains flag, ascending.
func (r *Result) IDs(flag string) []int {
	var ids []int
	for _, m := range r.Masks {
		if m.Flags.Has(flag) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Baker evaluates flags and refines them into masks.
type Baker struct {
	eval   Evaluator
	logger *zap.Logger
	// exhaustive disables the sub/superset skip during refinement.
	exhaustive bool
}

// Option configures a Baker.
type Option func(*Baker)

// WithLogger sets the logger used for progress records.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Baker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a Baker.
func New(eval Evaluator, opts ...Option) *Baker {
	b := &Baker{eval: eval, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bake evaluates each flag and partitions the results. Flag names must be
// unique.
func (b *Baker) Bake(flags []Flag) (*Result, error) {
	evaluated := make([]Evaluated, 0, len(flags))
	seen := make(map[string]struct{}, len(flags))
	for i, f := range flags {
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("duplicate flag %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		b.logger.Info("Evaluating flag",
			zap.String("flag", f.Name),
			zap.Int("index", i+1),
			zap.Int("total", len(flags)))
		blocks, err := b.eval.Evaluate(f.Expression)
		if err != nil {
			return nil, fmt.Errorf("flag %s: %w", f.Name, err)
		}
		evaluated = append(evaluated, Evaluated{Name: f.Name, Blocks: blocks})
	}
	return b.Refine(evaluated), nil
}

// Evaluated is a flag and the blocks it matches.
type Evaluated struct {
	Name   string
	Blocks *block.Collection
}

type piece struct {
	key    FlagSet
	blocks *block.Collection
}

// Refine partitions already evaluated flags.
//
// Work items are popped from the end of the queue. Each popped piece is split
// against every stored cell; the shared part is queued again under the union
// of both keys, and what is left of the piece is stored under its own key.
// A cell whose key is a subset or superset of the piece's key never shares
// blocks with it, so that pair is skipped.
func (b *Baker) Refine(flags []Evaluated) *Result {
	res := &Result{Flags: make([]string, 0, len(flags))}
	queue := make([]piece, 0, len(flags))
	for _, f := range flags {
		res.Flags = append(res.Flags, f.Name)
		blocks := f.Blocks
		if blocks == nil {
			blocks = block.NewCollection()
		}
		queue = append(queue, piece{key: NewFlagSet(f.Name), blocks: blocks.Clone()})
	}

	var cells []piece
	index := make(map[string]int)
	done := 0
	for len(queue) > 0 {
		item := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if item.key.Len() == 1 {
			done++
			b.logger.Info("Refining flag",
				zap.String("flag", item.key.names[0]),
				zap.Int("index", done),
				zap.Int("total", len(flags)))
		}

		blocks := item.blocks
		for i := range cells {
			cell := &cells[i]
			if cell.blocks.IsEmpty() || blocks.IsEmpty() {
				continue
			}
			if !b.exhaustive && (cell.key.IsSubsetOf(item.key) || item.key.IsSubsetOf(cell.key)) {
				continue
			}
			cellOnly, itemOnly, both := Swizzle(cell.blocks, blocks)
			cell.blocks = cellOnly
			blocks = itemOnly
			if !both.IsEmpty() {
				queue = append(queue, piece{key: cell.key.Union(item.key), blocks: both})
			}
		}

		if blocks.IsEmpty() {
			continue
		}
		if i, ok := index[item.key.Key()]; ok {
			cells[i].blocks.InsertAll(blocks)
			continue
		}
		index[item.key.Key()] = len(cells)
		cells = append(cells, piece{key: item.key, blocks: blocks})
	}

	for _, c := range cells {
		if c.blocks.IsEmpty() {
			continue
		}
		res.Masks = append(res.Masks, Mask{ID: len(res.Masks) + 1, Flags: c.key, Blocks: c.blocks})
	}
	return res
}

// Swizzle splits two collections into (a − b, b − a, a ∩ b).
func Swizzle(a, b *block.Collection) (aOnly, bOnly, both *block.Collection) {
	return a.Difference(b), b.Difference(a), a.Intersection(b)
}
