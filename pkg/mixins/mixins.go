// Package mixins registers the stock virtual tags.
package mixins

import (
	"fmt"

	"github.com/duynguyendang/blockbaker/pkg/tags"
)

// Directions in clockwise order.
var Directions = []string{"north", "east", "south", "west"}

// RegisterAll registers every stock mixin into lib.
func RegisterAll(lib *tags.Library) error {
	if err := RegisterStairs(lib); err != nil {
		return err
	}
	return RegisterSlabs(lib)
}

// RegisterStairs registers stairs/solid/{top,bottom} and one
// stairs/solid/<direction> tag per direction, holding the stair states with a
// full face on that side.
func RegisterStairs(lib *tags.Library) error {
	stairs := lib.Supplier("stairs")

	builders := []tags.StateBuilder{
		tags.NewStateTag("stairs/solid/top", stairs).WithState(map[string]string{"half": "top"}),
		tags.NewStateTag("stairs/solid/bottom", stairs).WithState(map[string]string{"half": "bottom"}),
	}
	for i, s := range Directions {
		l := Directions[(i+len(Directions)-1)%len(Directions)]
		r := Directions[(i+1)%len(Directions)]

		b := tags.NewStateTag("stairs/solid/"+s, stairs)
		for _, pass := range []struct{ shape, facing string }{
			{"straight", s},
			{"inner_left", s},
			{"inner_left", r},
			{"inner_right", l},
			{"inner_right", s},
		} {
			for _, half := range []string{"bottom", "top"} {
				b = b.WithState(map[string]string{"shape": pass.shape, "facing": pass.facing, "half": half})
			}
		}
		builders = append(builders, b)
	}
	return register(lib, builders)
}

// RegisterSlabs registers slab/{bottom,top,half,double}.
func RegisterSlabs(lib *tags.Library) error {
	slabs := lib.Supplier("slab")
	return register(lib, []tags.StateBuilder{
		tags.NewStateTag("slab/bottom", slabs).WithState(map[string]string{"type": "bottom"}),
		tags.NewStateTag("slab/top", slabs).WithState(map[string]string{"type": "top"}),
		tags.NewStateTag("slab/half", slabs).
			WithState(map[string]string{"type": "bottom"}).
			WithState(map[string]string{"type": "top"}),
		tags.NewStateTag("slab/double", slabs).WithState(map[string]string{"type": "double"}),
	})
}

func register(lib *tags.Library, builders []tags.StateBuilder) error {
	for _, b := range builders {
		t, err := b.Build()
		if err != nil {
			return err
		}
		if err := lib.RegisterMixin(t); err != nil {
			return fmt.Errorf("failed to register mixin %s: %w", t, err)
		}
	}
	return nil
}
