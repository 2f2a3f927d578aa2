package tags

import (
	"fmt"
	"slices"

	"github.com/duynguyendang/blockbaker/pkg/block"
	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
)

// StateBuilder accumulates the state passes of a virtual tag. Each WithState
// returns a new builder, so a partially built tag is never observable.
type StateBuilder struct {
	path     string
	supplier Supplier
	states   []block.State
	err      error
}

// NewStateTag starts a virtual tag at tagPath that specializes the blocks
// returned by supplier.
func NewStateTag(tagPath string, supplier Supplier) StateBuilder {
	return StateBuilder{path: tagPath, supplier: supplier}
}

// WithState adds one pass: every supplied block is constrained to props.
func (b StateBuilder) WithState(props map[string]string) StateBuilder {
	multi := make(map[string][]string, len(props))
	for k, v := range props {
		multi[k] = []string{v}
	}
	return b.WithStates(multi)
}

// WithStates is WithState with a set of allowed values per property. A
// property with no values makes Build fail.
func (b StateBuilder) WithStates(props map[string][]string) StateBuilder {
	next := b
	if b.err != nil {
		return next
	}
	st, err := block.NewState(props)
	if err != nil {
		next.err = fmt.Errorf("virtual tag %s: %w: %w", b.path, apperrors.ErrInvalidInput, err)
		return next
	}
	next.states = append(slices.Clone(b.states), st)
	return next
}

// Build returns the tag. A tag built without any pass is always empty.
func (b StateBuilder) Build() (*Tag, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.supplier == nil {
		return nil, fmt.Errorf("virtual tag %s has no supplier: %w", b.path, apperrors.ErrInvalidInput)
	}
	return &Tag{
		path:     b.path,
		kind:     KindState,
		supplier: b.supplier,
		states:   slices.Clone(b.states),
	}, nil
}
