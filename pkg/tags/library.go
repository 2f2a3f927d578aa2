// Package tags implements the hierarchical tag library.
//
// A Library resolves "/" separated tag paths in two layers. Registered mixins
// (computed state tags) are consulted first; everything else lives in a prefix
// tree that is filled lazily from the backing store.Storage. A Library with a
// nil Storage is memory-only.
//
// Every block added to a stored tag is also added to its ancestors, so a
// parent tag always covers its children.
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

type node struct {
	tag      *Tag
	children map[string]*node
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Library owns every tag it hands out.
type Library struct {
	storage store.Storage
	logger  *zap.Logger
	root    *node
	mixins  map[string]*Tag
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Library) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a library backed by storage, or memory-only if storage is nil.
func New(storage store.Storage, opts ...Option) *Library {
	l := &Library{
		storage: storage,
		logger:  zap.NewNop(),
		root:    newNode(),
		mixins:  make(map[string]*Tag),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Storage returns the backing storage, nil for a memory-only library.
func (l *Library) Storage() store.Storage { return l.storage }

// Get resolves a tag path. Mixins win over stored tags.
func (l *Library) Get(tagPath string) (*Tag, error) {
	if err := validPath(tagPath); err != nil {
		return nil, err
	}
	if t, ok := l.mixins[tagPath]; ok {
		return t, nil
	}

	n := l.lookup(tagPath, l.storage != nil)
	if n != nil && n.tag != nil {
		return n.tag, nil
	}
	if l.storage == nil {
		return nil, l.notFound(tagPath)
	}

	kind, ok, err := l.storage.Kind(tagPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tag %s: %w", tagPath, err)
	}
	if !ok {
		return nil, l.notFound(tagPath)
	}
	if kind == store.KindBool {
		n.tag = newBoolTag(l, tagPath, false)
	} else {
		n.tag = newEnumTag(l, tagPath, nil, false)
	}
	return n.tag, nil
}

// CreateBool creates an empty bool tag. It is not persisted until Save.
func (l *Library) CreateBool(tagPath string) (*Tag, error) {
	n, err := l.prepareCreate(tagPath)
	if err != nil {
		return nil, err
	}
	n.tag = newBoolTag(l, tagPath, true)
	return n.tag, nil
}

// CreateEnum creates an enum tag with the given empty values. It is not
// persisted until Save.
func (l *Library) CreateEnum(tagPath string, values []string) (*Tag, error) {
	seen := make(map[string]struct{}, len(values))
	var unique []string
	for _, v := range values {
		if err := validValue(v); err != nil {
			return nil, err
		}
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			unique = append(unique, v)
		}
	}
	n, err := l.prepareCreate(tagPath)
	if err != nil {
		return nil, err
	}
	n.tag = newEnumTag(l, tagPath, unique, true)
	return n.tag, nil
}

// prepareCreate checks that tagPath is free and that its parent exists.
func (l *Library) prepareCreate(tagPath string) (*node, error) {
	if err := validPath(tagPath); err != nil {
		return nil, err
	}
	if _, ok := l.mixins[tagPath]; ok {
		return nil, fmt.Errorf("tag %s is a mixin: %w", tagPath, apperrors.ErrAlreadyExists)
	}
	if n := l.lookup(tagPath, false); n != nil && n.tag != nil {
		return nil, fmt.Errorf("tag %s: %w", tagPath, apperrors.ErrAlreadyExists)
	}
	if l.storage != nil {
		if _, ok, err := l.storage.Kind(tagPath); err != nil {
			return nil, err
		} else if ok {
			return nil, fmt.Errorf("tag %s: %w", tagPath, apperrors.ErrAlreadyExists)
		}
	}
	if i := strings.LastIndex(tagPath, "/"); i >= 0 {
		if _, err := l.Get(tagPath[:i]); err != nil {
			return nil, fmt.Errorf("cannot create %s without its parent: %w", tagPath, err)
		}
	}
	return l.lookup(tagPath, true), nil
}

// Delete removes a stored tag and everything below it, from storage and
// from the tree. With storage attached, a tag that was never saved is
// NotFound and stays in the tree.
func (l *Library) Delete(tagPath string) error {
	if _, ok := l.mixins[tagPath]; ok {
		return fmt.Errorf("cannot delete mixin %s: %w", tagPath, apperrors.ErrIllegalMutation)
	}
	t, err := l.Get(tagPath)
	if err != nil {
		return err
	}
	if l.storage != nil {
		if t.fresh {
			return fmt.Errorf("tag %s was never saved: %w", tagPath, apperrors.ErrNotFound)
		}
		if err := l.storage.Delete(tagPath); err != nil {
			return fmt.Errorf("failed to delete %s: %w", tagPath, err)
		}
	}

	parent := l.root
	if i := strings.LastIndex(tagPath, "/"); i >= 0 {
		parent = l.lookup(tagPath[:i], false)
	}
	if parent != nil {
		delete(parent.children, tagPath[strings.LastIndex(tagPath, "/")+1:])
	}
	return nil
}

// RegisterMixin installs a state tag, overriding whatever was at its path.
func (l *Library) RegisterMixin(t *Tag) error {
	if t == nil || t.kind != KindState {
		return fmt.Errorf("only state tags can be mixins: %w", apperrors.ErrInvalidInput)
	}
	if err := validPath(t.path); err != nil {
		return err
	}
	overridden := false
	if _, ok := l.mixins[t.path]; ok {
		overridden = true
	} else if n := l.lookup(t.path, false); n != nil && n.tag != nil {
		overridden = true
	} else if l.storage != nil {
		_, ok, err := l.storage.Kind(t.path)
		if err != nil {
			l.logger.Warn("Failed to check storage for a tag under mixin",
				zap.String("tag", t.path), zap.Error(err))
		}
		overridden = ok
	}
	if overridden {
		l.logger.Warn("Overriding existing tag with mixin", zap.String("tag", t.path))
	}
	t.lib = l
	l.mixins[t.path] = t
	return nil
}

// Supplier returns a Supplier reading the current contents of tagPath.
func (l *Library) Supplier(tagPath string) Supplier {
	return func() (*block.Collection, error) {
		t, err := l.Get(tagPath)
		if err != nil {
			return nil, err
		}
		return t.Get()
	}
}

// List returns every known tag path, stored or computed, sorted.
func (l *Library) List() ([]string, error) {
	seen := make(map[string]struct{})
	if l.storage != nil {
		stored, err := l.storage.List()
		if err != nil {
			return nil, fmt.Errorf("failed to list tags: %w", err)
		}
		for _, p := range stored {
			seen[p] = struct{}{}
		}
	}
	var walk func(prefix string, n *node)
	walk = func(prefix string, n *node) {
		for name, child := range n.children {
			p := name
			if prefix != "" {
				p = prefix + "/" + name
			}
			if child.tag != nil {
				seen[p] = struct{}{}
			}
			walk(p, child)
		}
	}
	walk("", l.root)
	for p := range l.mixins {
		seen[p] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// IsMixin reports whether tagPath resolves to a registered mixin.
func (l *Library) IsMixin(tagPath string) bool {
	_, ok := l.mixins[tagPath]
	return ok
}

// lookup walks the tree, creating missing nodes when create is set. It
// returns nil when a node is missing and create is false.
func (l *Library) lookup(tagPath string, create bool) *node {
	here := l.root
	for _, part := range strings.Split(tagPath, "/") {
		next, ok := here.children[part]
		if !ok {
			if !create {
				return nil
			}
			next = newNode()
			here.children[part] = next
		}
		here = next
	}
	return here
}

func (l *Library) notFound(tagPath string) error {
	if hints := l.Suggest(tagPath); len(hints) > 0 {
		return fmt.Errorf("no such tag %s (did you mean %s?): %w", tagPath, strings.Join(hints, ", "), apperrors.ErrNotFound)
	}
	return fmt.Errorf("no such tag %s: %w", tagPath, apperrors.ErrNotFound)
}

func validPath(tagPath string) error {
	if tagPath == "" {
		return fmt.Errorf("empty tag path: %w", apperrors.ErrInvalidInput)
	}
	for _, part := range strings.Split(tagPath, "/") {
		if part == "" || part == "." || part == ".." || strings.HasPrefix(part, ".") ||
			strings.ContainsAny(part, ":\\ \t\n") {
			return fmt.Errorf("invalid tag path %q: %w", tagPath, apperrors.ErrInvalidInput)
		}
	}
	return nil
}
