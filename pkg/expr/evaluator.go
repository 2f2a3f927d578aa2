package expr

import (
	"fmt"

	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/duynguyendang/blockbaker/pkg/block"
	"github.com/duynguyendang/blockbaker/pkg/tags"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultCacheSize is the number of parsed expressions kept by an Evaluator.
const DefaultCacheSize = 256

// Library resolves tag paths.
type Library interface {
	Get(tagPath string) (*tags.Tag, error)
}

// Evaluator evaluates expressions against a Library. Parsed trees are cached
// by source text; results never are, since tag contents change.
type Evaluator struct {
	lib    Library
	cache  *lru.Cache[string, Node]
	logger *zap.Logger
}

// Option configures an Evaluator.
type Option func(*evaluatorOptions)

type evaluatorOptions struct {
	cacheSize int
	logger    *zap.Logger
}

// WithCacheSize sets the parsed expression cache size.
func WithCacheSize(n int) Option {
	return func(o *evaluatorOptions) { o.cacheSize = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *evaluatorOptions) { o.logger = logger }
}

// NewEvaluator creates an Evaluator over lib.
func NewEvaluator(lib Library, opts ...Option) (*Evaluator, error) {
	o := evaluatorOptions{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.cacheSize <= 0 {
		o.cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, Node](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression cache: %w", err)
	}
	return &Evaluator{lib: lib, cache: cache, logger: o.logger}, nil
}

// Compile returns the parsed tree of src, from the cache when possible.
func (e *Evaluator) Compile(src string) (Node, error) {
	if n, ok := e.cache.Get(src); ok {
		return n, nil
	}
	n, err := Parse(src)
	if err != nil {
		return nil, err
	}
	e.cache.Add(src, n)
	return n, nil
}

// Evaluate parses and evaluates src.
func (e *Evaluator) Evaluate(src string) (*block.Collection, error) {
	n, err := e.Compile(src)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Evaluating expression", zap.String("expression", src), zap.Stringer("tree", n))
	return e.Eval(n)
}

// Eval evaluates a parsed tree. The left operand is evaluated first.
func (e *Evaluator) Eval(n Node) (*block.Collection, error) {
	switch n := n.(type) {
	case *Literal:
		return n.Blocks.Clone(), nil
	case *Identity:
		return e.identity(n)
	case *BinaryOperator:
		left, err := e.Eval(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.Eval(n.Right)
		if err != nil {
			return nil, err
		}
		return apply(n.Op, left, right)
	default:
		return nil, fmt.Errorf("unknown node %T: %w", n, apperrors.ErrInvalidExpression)
	}
}

func (e *Evaluator) identity(n *Identity) (*block.Collection, error) {
	t, err := e.lib.Get(n.Tag)
	if err != nil {
		return nil, err
	}
	if t.Kind() == tags.KindEnum && n.Value != "" {
		return t.GetValue(n.Value)
	}
	return t.Get()
}

func apply(op TokenType, left, right *block.Collection) (*block.Collection, error) {
	switch op {
	case TokenUnion:
		return left.Union(right), nil
	case TokenDifference:
		return left.Difference(right), nil
	case TokenIntersection:
		return left.Intersection(right), nil
	case TokenXor:
		return left.SymmetricDifference(right), nil
	default:
		return nil, fmt.Errorf("%s is not an operator: %w", op, apperrors.ErrInvalidExpression)
	}
}

// Evaluate parses and evaluates src against lib without caching.
func Evaluate(src string, lib Library) (*block.Collection, error) {
	n, err := Parse(src)
	if err != nil {
		return nil, err
	}
	e := &Evaluator{lib: lib, logger: zap.NewNop()}
	return e.Eval(n)
}
