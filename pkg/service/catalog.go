package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/duynguyendang/blockbaker/internal/manager"
	"github.com/duynguyendang/blockbaker/pkg/bake"
	"github.com/duynguyendang/blockbaker/pkg/block"
	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/duynguyendang/blockbaker/pkg/export"
	"github.com/duynguyendang/blockbaker/pkg/tags"
	"go.uber.org/zap"
)

// ProjectManager is the project lookup the service depends on.
type ProjectManager interface {
	Get(projectID string) (*manager.Project, error)
	GetOrCreate(projectID string) (*manager.Project, error)
	ListProjects() ([]manager.ProjectMetadata, error)
}

// CatalogService handles tag queries, edits and bakes for a project.
type CatalogService struct {
	manager ProjectManager
	logger  *zap.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(mgr ProjectManager, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{manager: mgr, logger: logger}
}

// QueryResult is the evaluation of one expression.
type QueryResult struct {
	Expression string   `json:"expression"`
	Parsed     string   `json:"parsed"`
	Blocks     []string `json:"blocks"`
	Count      int      `json:"count"`
}

// TagSummary is one entry of a tag listing.
type TagSummary struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Virtual bool   `json:"virtual"`
}

// TagInfo describes a tag and its contents.
type TagInfo struct {
	TagSummary
	Blocks []string            `json:"blocks"`
	Values map[string][]string `json:"values,omitempty"`
}

// ListProjects returns a list of available projects.
func (s *CatalogService) ListProjects() ([]manager.ProjectMetadata, error) {
	return s.manager.ListProjects()
}

// Query evaluates an expression against a project's library.
func (s *CatalogService) Query(ctx context.Context, projectID, expression string) (*QueryResult, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("%w: empty expression", apperrors.ErrInvalidInput)
	}
	var res *QueryResult
	err := s.with(ctx, projectID, false, func(p *manager.Project) error {
		node, err := p.Evaluator.Compile(expression)
		if err != nil {
			return err
		}
		blocks, err := p.Evaluator.Eval(node)
		if err != nil {
			return err
		}
		res = &QueryResult{
			Expression: expression,
			Parsed:     node.String(),
			Blocks:     blocks.Strings(),
			Count:      blocks.Len(),
		}
		return nil
	})
	return res, err
}

// ListTags returns the tags of a project whose path matches glob. An empty
// glob matches every tag.
func (s *CatalogService) ListTags(ctx context.Context, projectID, glob string) ([]TagSummary, error) {
	if glob != "" && !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("%w: bad glob pattern %q", apperrors.ErrInvalidInput, glob)
	}
	var out []TagSummary
	err := s.with(ctx, projectID, false, func(p *manager.Project) error {
		paths, err := MatchTags(p.Library, glob)
		if err != nil {
			return err
		}
		out = make([]TagSummary, 0, len(paths))
		for _, path := range paths {
			tag, err := p.Library.Get(path)
			if err != nil {
				return err
			}
			out = append(out, summarize(p.Library, tag))
		}
		return nil
	})
	return out, err
}

// MatchTags lists the tag paths of lib matching a doublestar glob.
func MatchTags(lib *tags.Library, glob string) ([]string, error) {
	paths, err := lib.List()
	if err != nil {
		return nil, err
	}
	if glob == "" {
		return paths, nil
	}
	matched := paths[:0]
	for _, path := range paths {
		ok, err := doublestar.Match(glob, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		if ok {
			matched = append(matched, path)
		}
	}
	return matched, nil
}

// DescribeTag returns a tag's blocks, and for enum tags the blocks of each
// value.
func (s *CatalogService) DescribeTag(ctx context.Context, projectID, path string) (*TagInfo, error) {
	var info *TagInfo
	err := s.with(ctx, projectID, false, func(p *manager.Project) error {
		tag, err := p.Library.Get(path)
		if err != nil {
			return err
		}
		info, err = describe(p.Library, tag)
		return err
	})
	return info, err
}

// CreateTag creates a tag and persists it. A tag with values is an enum tag.
func (s *CatalogService) CreateTag(ctx context.Context, projectID, path string, values []string) (*TagInfo, error) {
	var info *TagInfo
	err := s.with(ctx, projectID, true, func(p *manager.Project) error {
		var tag *tags.Tag
		var err error
		if len(values) > 0 {
			tag, err = p.Library.CreateEnum(path, values)
		} else {
			tag, err = p.Library.CreateBool(path)
		}
		if err != nil {
			return err
		}
		if err := tag.Save(); err != nil {
			return err
		}
		s.logger.Info("Created tag", zap.String("project", projectID), zap.String("tag", path), zap.String("kind", tag.Kind().String()))
		info, err = describe(p.Library, tag)
		return err
	})
	return info, err
}

// EditValues adds and drops values of an enum tag. Values present in both
// lists are ignored. Nothing changes unless every value is accepted.
func (s *CatalogService) EditValues(ctx context.Context, projectID, path string, add, remove []string) (*TagInfo, error) {
	add, remove, ignored := SplitConflicts(add, remove)
	if len(ignored) > 0 {
		s.logger.Warn("Values in both add and remove; ignoring", zap.Strings("values", ignored))
	}
	var info *TagInfo
	err := s.with(ctx, projectID, false, func(p *manager.Project) error {
		tag, err := p.Library.Get(path)
		if err != nil {
			return err
		}
		if tag.Kind() != tags.KindEnum {
			return fmt.Errorf("tag %s is %s; only enum tags have values: %w", path, tag.Kind(), apperrors.ErrIllegalMutation)
		}
		if err := tag.EditValues(add, remove); err != nil {
			return err
		}
		if err := tag.Save(); err != nil {
			return err
		}
		info, err = describe(p.Library, tag)
		return err
	})
	return info, err
}

// DeleteTag removes a tag and everything below it.
func (s *CatalogService) DeleteTag(ctx context.Context, projectID, path string) error {
	return s.with(ctx, projectID, false, func(p *manager.Project) error {
		if err := p.Library.Delete(path); err != nil {
			return err
		}
		s.logger.Info("Deleted tag", zap.String("project", projectID), zap.String("tag", path))
		return nil
	})
}

// TagRef names a tag, optionally with an enum value, as "tag" or "tag:value".
type TagRef struct {
	Tag   string
	Value string
}

// ParseTagRef splits a reference on its last colon.
func ParseTagRef(s string) TagRef {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		return TagRef{Tag: s[:i], Value: s[i+1:]}
	}
	return TagRef{Tag: s}
}

func (r TagRef) String() string {
	if r.Value == "" {
		return r.Tag
	}
	return r.Tag + ":" + r.Value
}

// TagBlocks adds blocks to the add tags and removes them from the remove
// tags, then saves every touched tag. References present in both lists are
// ignored. Every step is checked against the current tags before any is
// applied, so a value-less add to an enum tag cannot rely on blocks added
// by an earlier step of the same call.
func (s *CatalogService) TagBlocks(ctx context.Context, projectID string, blocks *block.Collection, add, remove []string) error {
	add, remove, ignored := SplitConflicts(add, remove)
	if len(ignored) > 0 {
		s.logger.Warn("Tags in both add and remove; ignoring", zap.Strings("tags", ignored))
	}
	return s.with(ctx, projectID, false, func(p *manager.Project) error {
		type step struct {
			tag    *tags.Tag
			value  string
			remove bool
		}
		var steps []step
		resolve := func(refs []string, remove bool) error {
			for _, raw := range refs {
				ref := ParseTagRef(raw)
				tag, err := p.Library.Get(ref.Tag)
				if err != nil {
					return err
				}
				switch tag.Kind() {
				case tags.KindBool:
					if ref.Value != "" {
						return fmt.Errorf("cannot specify value for boolean tag %s: %w", ref.Tag, apperrors.ErrInvalidInput)
					}
				case tags.KindEnum:
				default:
					return fmt.Errorf("tag %s is %s: %w", ref.Tag, tag.Kind(), apperrors.ErrIllegalMutation)
				}
				steps = append(steps, step{tag: tag, value: ref.Value, remove: remove})
			}
			return nil
		}
		if err := resolve(add, false); err != nil {
			return err
		}
		if err := resolve(remove, true); err != nil {
			return err
		}

		for _, st := range steps {
			var err error
			if st.remove {
				err = st.tag.CheckRemove(st.value, blocks)
			} else {
				err = st.tag.CheckAdd(st.value, blocks)
			}
			if err != nil {
				return err
			}
		}
		for _, st := range steps {
			var err error
			switch {
			case st.remove && st.value != "":
				err = st.tag.RemoveValue(st.value, blocks)
			case st.remove:
				err = st.tag.Remove(blocks)
			case st.value != "":
				err = st.tag.AddValue(st.value, blocks)
			default:
				err = st.tag.Add(blocks)
			}
			if err != nil {
				return err
			}
		}
		for _, st := range steps {
			if err := st.tag.Save(); err != nil {
				return err
			}
		}
		return nil
	})
}

// BakeResult is a baked partition in wire form.
type BakeResult struct {
	Masks    []MaskInfo       `json:"masks"`
	Decoders map[string][]int `json:"decoders"`
}

// MaskInfo is one mask of a BakeResult.
type MaskInfo struct {
	ID     int      `json:"id"`
	Flags  []string `json:"flags"`
	Blocks []string `json:"blocks"`
}

// Bake partitions the blocks matched by the given flags of a project.
func (s *CatalogService) Bake(ctx context.Context, projectID string, flags []bake.Flag) (*BakeResult, error) {
	if len(flags) == 0 {
		return nil, fmt.Errorf("%w: no flags", apperrors.ErrInvalidInput)
	}
	var out *BakeResult
	err := s.with(ctx, projectID, false, func(p *manager.Project) error {
		res, err := p.Baker.Bake(flags)
		if err != nil {
			return err
		}
		out = NewBakeResult(res)
		return nil
	})
	return out, err
}

// Export bakes an export configuration against a project and writes its
// property listing and decoder files.
func (s *CatalogService) Export(ctx context.Context, projectID string, cfg *export.Config) (*BakeResult, error) {
	var out *BakeResult
	err := s.with(ctx, projectID, false, func(p *manager.Project) error {
		res, err := export.NewExporter(p.Baker, s.logger.With(zap.String("project", projectID))).Export(cfg)
		if err != nil {
			return err
		}
		out = NewBakeResult(res)
		return nil
	})
	return out, err
}

// NewBakeResult converts a baked partition to wire form.
func NewBakeResult(res *bake.Result) *BakeResult {
	out := &BakeResult{
		Masks:    make([]MaskInfo, 0, len(res.Masks)),
		Decoders: make(map[string][]int, len(res.Flags)),
	}
	for _, m := range res.Masks {
		out.Masks = append(out.Masks, MaskInfo{ID: m.ID, Flags: m.Flags.Names(), Blocks: m.Blocks.Strings()})
	}
	for _, f := range res.Flags {
		ids := res.IDs(f)
		if ids == nil {
			ids = []int{}
		}
		out.Decoders[f] = ids
	}
	return out
}

// Verify reports inheritance violations of a project's stored tags.
func (s *CatalogService) Verify(ctx context.Context, projectID string) ([]string, error) {
	var out []string
	err := s.with(ctx, projectID, false, func(p *manager.Project) error {
		violations, err := p.Library.Verify()
		if err != nil {
			return err
		}
		out = make([]string, 0, len(violations))
		for _, v := range violations {
			out = append(out, v.String())
		}
		return nil
	})
	return out, err
}

// SplitConflicts drops the entries present in both lists and returns them
// separately.
func SplitConflicts(add, remove []string) (keepAdd, keepRemove, ignored []string) {
	inRemove := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		inRemove[r] = struct{}{}
	}
	both := make(map[string]struct{})
	for _, a := range add {
		if _, ok := inRemove[a]; ok {
			both[a] = struct{}{}
		}
	}
	for _, a := range add {
		if _, ok := both[a]; !ok {
			keepAdd = append(keepAdd, a)
		}
	}
	for _, r := range remove {
		if _, ok := both[r]; !ok {
			keepRemove = append(keepRemove, r)
		}
	}
	for v := range both {
		ignored = append(ignored, v)
	}
	sort.Strings(ignored)
	return keepAdd, keepRemove, ignored
}

// with runs fn against a project under its lock. A project evicted between
// lookup and lock is fetched again.
func (s *CatalogService) with(ctx context.Context, projectID string, create bool, fn func(p *manager.Project) error) error {
	if projectID == "" {
		return fmt.Errorf("%w: missing project ID", apperrors.ErrInvalidInput)
	}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var p *manager.Project
		var err error
		if create {
			p, err = s.manager.GetOrCreate(projectID)
		} else {
			p, err = s.manager.Get(projectID)
		}
		if err != nil {
			return err
		}
		err = p.Do(fn)
		if errors.Is(err, manager.ErrProjectClosed) && attempt == 0 {
			continue
		}
		return err
	}
}

func summarize(lib *tags.Library, tag *tags.Tag) TagSummary {
	return TagSummary{Path: tag.Path(), Kind: tag.Kind().String(), Virtual: lib.IsMixin(tag.Path())}
}

func describe(lib *tags.Library, tag *tags.Tag) (*TagInfo, error) {
	blocks, err := tag.Get()
	if err != nil {
		return nil, err
	}
	info := &TagInfo{TagSummary: summarize(lib, tag), Blocks: blocks.Strings()}
	if tag.Kind() != tags.KindEnum {
		return info, nil
	}
	values, err := tag.Values()
	if err != nil {
		return nil, err
	}
	info.Values = make(map[string][]string, len(values))
	for _, v := range values {
		vb, err := tag.GetValue(v)
		if err != nil {
			return nil, err
		}
		info.Values[v] = vb.Strings()
	}
	return info, nil
}

// ParseBlocks parses descriptor strings from a request.
func ParseBlocks(items []string) (*block.Collection, error) {
	c, err := block.ParseCollection(items)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	if c.IsEmpty() {
		return nil, fmt.Errorf("%w: no blocks given", apperrors.ErrInvalidInput)
	}
	return c, nil
}
