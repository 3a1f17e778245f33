package machine

import (
	"fmt"

	"github.com/ConnorBaker/nix-sub005/pkg/graph/symbol"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// Extract converts a reduced head into a host value. Nested list elements
// and attribute values stay lazy: they are host thunks over the machine's
// cells. A bare function cannot be extracted.
func (m *Machine) Extract(h Head) (value.Value, error) {
	if _, ok := h.(*Closure); ok {
		return nil, fmt.Errorf("%w: top-level function", ErrNotExtractable)
	}
	return m.toHost(h)
}

func (m *Machine) toHost(h Head) (value.Value, error) {
	switch h := h.(type) {
	case Int:
		return value.Int(h), nil
	case Float:
		return value.Float(h), nil
	case Bool:
		return value.Bool(h), nil
	case String:
		return value.String(h), nil
	case Path:
		return value.Path(h), nil
	case Null:
		return value.Null{}, nil
	case *List:
		elems := make([]*value.Thunk, len(h.Elems))
		for i, c := range h.Elems {
			elems[i] = c.Thunk()
		}
		return &value.List{Elems: elems}, nil
	case *Attrs:
		fields := make(map[string]*value.Thunk, h.Top.Len())
		h.Top.Each(func(key symbol.Symbol, c *Cell) {
			fields[m.g.Symbols.Name(key)] = c.Thunk()
		})
		return value.NewAttrs(fields), nil
	case *Closure:
		return m.exportClosure(h), nil
	case *Foreign:
		return h.Fn, nil
	}
	return nil, unsupportedf("head %T", h)
}
