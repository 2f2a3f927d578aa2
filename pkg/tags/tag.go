package tags

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/duynguyendang/blockbaker/pkg/block"
	"github.com/duynguyendang/blockbaker/pkg/tags/store"
	"go.uber.org/zap"
)

// Kind distinguishes the three tag variants.
type Kind int

const (
	// KindBool tags hold one collection.
	KindBool Kind = iota + 1
	// KindEnum tags hold one collection per named value.
	KindEnum
	// KindState tags are computed from a supplier on every read.
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Supplier yields the base collection of a state tag.
type Supplier func() (*block.Collection, error)

// Tag is a node of the library. Which fields are in use depends on Kind.
type Tag struct {
	path string
	kind Kind
	lib  *Library

	// fresh is set until the location has been written once.
	fresh bool

	// bool
	contents *block.Collection
	dirty    bool

	// enum; a nil collection is a value known from storage but not loaded yet
	values map[string]*block.Collection
	edited map[string]struct{}
	listed bool

	// state
	supplier Supplier
	states   []block.State
}

func newBoolTag(lib *Library, p string, fresh bool) *Tag {
	t := &Tag{path: p, kind: KindBool, lib: lib, fresh: fresh}
	if fresh {
		t.contents = block.NewCollection()
		t.dirty = true
	}
	return t
}

func newEnumTag(lib *Library, p string, values []string, fresh bool) *Tag {
	t := &Tag{
		path:   p,
		kind:   KindEnum,
		lib:    lib,
		fresh:  fresh,
		values: make(map[string]*block.Collection),
		edited: make(map[string]struct{}),
	}
	for _, v := range values {
		t.values[v] = block.NewCollection()
		t.edited[v] = struct{}{}
	}
	return t
}

// Path returns the "/" separated path of the tag.
func (t *Tag) Path() string { return t.path }

// Kind returns the tag variant.
func (t *Tag) Kind() Kind { return t.kind }

func (t *Tag) String() string { return t.path }

func (t *Tag) logger() *zap.Logger {
	if t.lib == nil {
		return zap.NewNop()
	}
	return t.lib.logger
}

func (t *Tag) storage() store.Storage {
	if t.lib == nil {
		return nil
	}
	return t.lib.storage
}

// Parent returns the tag one path segment up, or nil for a top-level tag.
func (t *Tag) Parent() (*Tag, error) {
	i := strings.LastIndex(t.path, "/")
	if i < 0 || t.lib == nil {
		return nil, nil
	}
	return t.lib.Get(t.path[:i])
}

// ancestors returns the parent chain, nearest first.
func (t *Tag) ancestors() ([]*Tag, error) {
	var chain []*Tag
	for cur := t; ; {
		parent, err := cur.Parent()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parent of %s: %w", cur, err)
		}
		if parent == nil {
			return chain, nil
		}
		chain = append(chain, parent)
		cur = parent
	}
}

// Get returns a copy of the tag's contents. For an enum tag it is the union
// of every value.
func (t *Tag) Get() (*block.Collection, error) {
	switch t.kind {
	case KindBool:
		if err := t.loadBool(); err != nil {
			return nil, err
		}
		return t.contents.Clone(), nil
	case KindEnum:
		values, err := t.Values()
		if err != nil {
			return nil, err
		}
		out := block.NewCollection()
		for _, v := range values {
			blocks, err := t.GetValue(v)
			if err != nil {
				return nil, err
			}
			out.InsertAll(blocks)
		}
		return out, nil
	case KindState:
		return t.compute()
	default:
		return nil, fmt.Errorf("tag %s has unknown kind: %w", t, apperrors.ErrInternal)
	}
}

// GetValue returns a copy of one value of an enum tag.
func (t *Tag) GetValue(value string) (*block.Collection, error) {
	if t.kind != KindEnum {
		return nil, fmt.Errorf("%s tag %s has no values: %w", t.kind, t, apperrors.ErrInvalidInput)
	}
	ok, err := t.loadValue(value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, t.noSuchValue(value)
	}
	return t.values[value].Clone(), nil
}

// Values returns the sorted value names of an enum tag, including values
// only present in storage.
func (t *Tag) Values() ([]string, error) {
	if t.kind != KindEnum {
		return nil, nil
	}
	if err := t.listValues(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(t.values))
	for v := range t.values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// HasValue reports whether an enum tag knows value.
func (t *Tag) HasValue(value string) (bool, error) {
	if t.kind != KindEnum {
		return false, nil
	}
	if err := t.listValues(); err != nil {
		return false, err
	}
	_, ok := t.values[value]
	return ok, nil
}

// Add inserts blocks into the tag and every ancestor. An enum tag reached
// without a value only accepts blocks it already holds.
func (t *Tag) Add(blocks *block.Collection) error {
	return t.mutate(mutation{add: true, blocks: blocks})
}

// AddValue inserts blocks into one value of an enum tag and into every
// ancestor.
func (t *Tag) AddValue(value string, blocks *block.Collection) error {
	return t.mutate(mutation{add: true, value: value, hasValue: true, blocks: blocks})
}

// Remove subtracts blocks from the tag and every ancestor. An enum tag
// reached without a value loses the blocks from every value.
func (t *Tag) Remove(blocks *block.Collection) error {
	return t.mutate(mutation{blocks: blocks})
}

// RemoveValue subtracts blocks from one value of an enum tag and from every
// ancestor.
func (t *Tag) RemoveValue(value string, blocks *block.Collection) error {
	return t.mutate(mutation{value: value, hasValue: true, blocks: blocks})
}

type mutation struct {
	add      bool
	value    string
	hasValue bool
	blocks   *block.Collection
}

// inherited is the form of m seen by ancestors.
func (m mutation) inherited() mutation {
	return mutation{add: m.add, blocks: m.blocks}
}

func newMutation(add bool, value string, blocks *block.Collection) mutation {
	return mutation{add: add, value: value, hasValue: value != "", blocks: blocks}
}

// CheckAdd reports the error Add would return, or AddValue when value is
// not empty, without changing anything.
func (t *Tag) CheckAdd(value string, blocks *block.Collection) error {
	_, err := t.validate(newMutation(true, value, blocks))
	return err
}

// CheckRemove reports the error Remove would return, or RemoveValue when
// value is not empty, without changing anything.
func (t *Tag) CheckRemove(value string, blocks *block.Collection) error {
	_, err := t.validate(newMutation(false, value, blocks))
	return err
}

// mutate validates the tag and the whole ancestor chain, then applies the
// change from the root down.
func (t *Tag) mutate(m mutation) error {
	chain, err := t.validate(m)
	if err != nil {
		return err
	}
	for i := len(chain) - 1; i >= 0; i-- {
		chain[i].apply(m.inherited())
	}
	t.apply(m)
	return nil
}

// validate checks m against the tag and every ancestor and returns the
// ancestor chain.
func (t *Tag) validate(m mutation) ([]*Tag, error) {
	chain, err := t.ancestors()
	if err != nil {
		return nil, err
	}
	if err := t.check(m); err != nil {
		return nil, err
	}
	for _, a := range chain {
		if err := a.check(m.inherited()); err != nil {
			return nil, fmt.Errorf("ancestor of %s: %w", t, err)
		}
	}
	return chain, nil
}

// check loads whatever apply will touch and reports why m cannot be applied.
func (t *Tag) check(m mutation) error {
	switch t.kind {
	case KindState:
		return fmt.Errorf("cannot change virtual tag %s: %w", t, apperrors.ErrIllegalMutation)
	case KindBool:
		if m.hasValue {
			return fmt.Errorf("bool tag %s has no value %q: %w", t, m.value, apperrors.ErrInvalidInput)
		}
		return t.loadBool()
	case KindEnum:
		if m.hasValue {
			ok, err := t.loadValue(m.value)
			if err != nil {
				return err
			}
			if !ok {
				return t.noSuchValue(m.value)
			}
			return nil
		}
		mine, err := t.Get()
		if err != nil {
			return err
		}
		if m.add && !m.blocks.Difference(mine).IsEmpty() {
			return fmt.Errorf("cannot assign value automatically for enum tag %s: %w", t, apperrors.ErrIllegalMutation)
		}
		return nil
	default:
		return fmt.Errorf("tag %s has unknown kind: %w", t, apperrors.ErrInternal)
	}
}

func (t *Tag) apply(m mutation) {
	switch t.kind {
	case KindBool:
		if m.add {
			t.contents.InsertAll(m.blocks)
		} else {
			t.contents.RemoveAll(m.blocks)
		}
		t.dirty = true
	case KindEnum:
		if m.hasValue {
			t.applyValue(m.value, m)
			return
		}
		if m.add {
			// Covered already; nothing to assign.
			return
		}
		for v := range t.values {
			t.applyValue(v, m)
		}
	}
}

func (t *Tag) applyValue(value string, m mutation) {
	blocks := t.values[value]
	if m.add {
		blocks.InsertAll(m.blocks)
	} else {
		blocks.RemoveAll(m.blocks)
	}
	t.edited[value] = struct{}{}
}

// EditValues creates the add values and drops the remove values of an enum
// tag. Every name is checked first; on error nothing changes.
func (t *Tag) EditValues(add, remove []string) error {
	if t.kind != KindEnum {
		return fmt.Errorf("%s tag %s cannot hold values: %w", t.kind, t, apperrors.ErrIllegalMutation)
	}
	seen := make(map[string]struct{}, len(add)+len(remove))
	for _, v := range add {
		if err := validValue(v); err != nil {
			return err
		}
		ok, err := t.HasValue(v)
		if err != nil {
			return err
		}
		if _, dup := seen[v]; ok || dup {
			return fmt.Errorf("enum tag %s already has the value %q: %w", t, v, apperrors.ErrAlreadyExists)
		}
		seen[v] = struct{}{}
	}
	for _, v := range remove {
		if _, dup := seen[v]; dup {
			return fmt.Errorf("value %q of %s is both added and removed: %w", v, t, apperrors.ErrInvalidInput)
		}
		ok, err := t.HasValue(v)
		if err != nil {
			return err
		}
		if !ok {
			return t.noSuchValue(v)
		}
		seen[v] = struct{}{}
	}

	for _, v := range add {
		t.values[v] = block.NewCollection()
		t.edited[v] = struct{}{}
	}
	for _, v := range remove {
		delete(t.values, v)
		t.edited[v] = struct{}{}
	}
	return nil
}

// CreateValue adds an empty value to an enum tag.
func (t *Tag) CreateValue(value string) error {
	if t.kind != KindEnum {
		return fmt.Errorf("%s tag %s cannot hold values: %w", t.kind, t, apperrors.ErrIllegalMutation)
	}
	if err := validValue(value); err != nil {
		return err
	}
	ok, err := t.HasValue(value)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("enum tag %s already has the value %q: %w", t, value, apperrors.ErrAlreadyExists)
	}
	t.values[value] = block.NewCollection()
	t.edited[value] = struct{}{}
	return nil
}

// DropValue removes a value from an enum tag. Its storage entry is deleted
// on the next Save.
func (t *Tag) DropValue(value string) error {
	if t.kind != KindEnum {
		return fmt.Errorf("%s tag %s cannot hold values: %w", t.kind, t, apperrors.ErrIllegalMutation)
	}
	ok, err := t.HasValue(value)
	if err != nil {
		return err
	}
	if !ok {
		return t.noSuchValue(value)
	}
	delete(t.values, value)
	t.edited[value] = struct{}{}
	return nil
}

// Save persists the ancestor chain, then the edited contents of the tag.
func (t *Tag) Save() error {
	s := t.storage()
	switch {
	case t.kind == KindState:
		return fmt.Errorf("cannot save virtual tag %s: %w", t, apperrors.ErrIllegalMutation)
	case s == nil:
		return fmt.Errorf("cannot save memory-only tag %s: %w", t, apperrors.ErrIllegalMutation)
	}

	parent, err := t.Parent()
	if err != nil {
		return err
	}
	if parent != nil && parent.kind != KindState {
		if err := parent.Save(); err != nil {
			return err
		}
	}

	if t.fresh {
		kind := store.KindEnum
		if t.kind == KindBool {
			kind = store.KindBool
		}
		if err := s.Create(t.path, kind); err != nil {
			return fmt.Errorf("failed to create %s: %w", t, err)
		}
		t.fresh = false
	}

	switch t.kind {
	case KindBool:
		if !t.dirty {
			return nil
		}
		t.logger().Info("Saving tag", zap.String("tag", t.path))
		if err := s.Save(t.path, store.BoolKey, t.contents); err != nil {
			return fmt.Errorf("failed to save %s: %w", t, err)
		}
		t.dirty = false
	case KindEnum:
		edited := make([]string, 0, len(t.edited))
		for v := range t.edited {
			edited = append(edited, v)
		}
		sort.Strings(edited)
		for _, v := range edited {
			if blocks, ok := t.values[v]; ok {
				t.logger().Info("Saving tag", zap.String("tag", t.path), zap.String("value", v))
				if blocks == nil {
					blocks = block.NewCollection()
				}
				err = s.Save(t.path, v, blocks)
			} else {
				t.logger().Info("Unlinking value", zap.String("tag", t.path), zap.String("value", v))
				err = s.DeleteKey(t.path, v)
			}
			if err != nil {
				return fmt.Errorf("failed to save %s:%s: %w", t, v, err)
			}
			delete(t.edited, v)
		}
	}
	return nil
}

func (t *Tag) loadBool() error {
	if t.contents != nil {
		return nil
	}
	t.contents = block.NewCollection()
	s := t.storage()
	if s == nil {
		return nil
	}
	blocks, ok, err := s.Load(t.path, store.BoolKey)
	if err != nil {
		t.contents = nil
		return fmt.Errorf("failed to load %s: %w", t, err)
	}
	if ok {
		t.contents = blocks
	}
	return nil
}

// listValues merges the value names found in storage, once. Values dropped
// since the last save stay dropped.
func (t *Tag) listValues() error {
	s := t.storage()
	if t.listed || s == nil || t.fresh {
		t.listed = true
		return nil
	}
	keys, err := s.Keys(t.path)
	if err != nil {
		return fmt.Errorf("failed to list values of %s: %w", t, err)
	}
	for _, k := range keys {
		if _, known := t.values[k]; known {
			continue
		}
		if _, dropped := t.edited[k]; dropped {
			continue
		}
		t.values[k] = nil
	}
	t.listed = true
	return nil
}

// loadValue makes value resident and reports whether it exists.
func (t *Tag) loadValue(value string) (bool, error) {
	if err := t.listValues(); err != nil {
		return false, err
	}
	blocks, ok := t.values[value]
	if !ok {
		return false, nil
	}
	if blocks != nil {
		return true, nil
	}
	loaded, found, err := t.storage().Load(t.path, value)
	if err != nil {
		return false, fmt.Errorf("failed to load %s:%s: %w", t, value, err)
	}
	if !found {
		loaded = block.NewCollection()
	}
	t.values[value] = loaded
	return true, nil
}

func (t *Tag) compute() (*block.Collection, error) {
	base, err := t.supplier()
	if err != nil {
		return nil, fmt.Errorf("failed to supply %s: %w", t, err)
	}
	out := block.NewCollection()
	for _, st := range t.states {
		for _, b := range base.Blocks() {
			specialized, ok := b.WithState(st)
			if !ok {
				t.logger().Warn("Block eliminated because of conflicting state",
					zap.String("tag", t.path),
					zap.String("block", b.String()),
					zap.String("state", st.String()))
				continue
			}
			out.Insert(specialized)
		}
	}
	return out, nil
}

func (t *Tag) noSuchValue(value string) error {
	return fmt.Errorf("enum tag %s has no value %q: %w", t, value, apperrors.ErrNoSuchValue)
}

func validValue(value string) error {
	if value == "" || strings.ContainsAny(value, "/:\\ \t\n") || value == store.BoolKey || strings.HasPrefix(value, ".") {
		return fmt.Errorf("invalid value name %q: %w", value, apperrors.ErrInvalidInput)
	}
	return nil
}
