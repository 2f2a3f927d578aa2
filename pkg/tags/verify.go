package tags

import (
	"errors"
	"fmt"

	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/duynguyendang/blockbaker/pkg/block"
)

// Violation is a stored tag holding blocks its parent lacks.
type Violation struct {
	Tag     string
	Parent  string
	Missing *block.Collection
}

func (v Violation) String() string {
	if v.Missing == nil {
		return fmt.Sprintf("%s: parent %s does not exist", v.Tag, v.Parent)
	}
	return fmt.Sprintf("%s: parent %s is missing %s", v.Tag, v.Parent, v.Missing.Summary())
}

// Verify checks that every stored tag is covered by its parent.
func (l *Library) Verify() ([]Violation, error) {
	paths, err := l.List()
	if err != nil {
		return nil, err
	}
	var out []Violation
	for _, p := range paths {
		t, err := l.Get(p)
		if err != nil {
			return nil, err
		}
		if t.kind == KindState {
			continue
		}
		parent, err := t.Parent()
		if errors.Is(err, apperrors.ErrNotFound) {
			out = append(out, Violation{Tag: p, Parent: parentPath(p)})
			continue
		}
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.kind == KindState {
			continue
		}

		mine, err := t.Get()
		if err != nil {
			return nil, err
		}
		theirs, err := parent.Get()
		if err != nil {
			return nil, err
		}
		if missing := mine.Difference(theirs); !missing.IsEmpty() {
			out = append(out, Violation{Tag: p, Parent: parent.path, Missing: missing})
		}
	}
	return out, nil
}

func parentPath(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return ""
}
