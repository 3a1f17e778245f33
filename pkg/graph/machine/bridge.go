package machine

import (
	"errors"

	"github.com/ConnorBaker/nix-sub005/pkg/graph/layers"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/term"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// fromHost converts a forced host value into a head. Nested thunks are
// wrapped, not forced.
func (m *Machine) fromHost(v value.Value) (Head, error) {
	switch v := v.(type) {
	case value.Int:
		return Int(v), nil
	case value.Float:
		return Float(v), nil
	case value.Bool:
		return Bool(v), nil
	case value.String:
		return String(v), nil
	case value.Path:
		return Path(v), nil
	case value.Null:
		return Null{}, nil
	case *value.List:
		elems := make([]*Cell, len(v.Elems))
		for i, t := range v.Elems {
			elems[i] = m.hostCell(t)
		}
		return &List{Elems: elems}, nil
	case *value.Attrs:
		entries := make([]layers.Entry[*Cell], 0, v.Len())
		for _, name := range v.Names() {
			t, _ := v.Get(name)
			entries = append(entries, layers.Entry[*Cell]{Key: m.g.Symbols.Intern(name), Value: m.hostCell(t)})
		}
		top, _ := layers.New(entries, nil)
		return &Attrs{Top: top}, nil
	case *value.Lambda:
		return &Foreign{Fn: v}, nil
	}
	return nil, unsupportedf("host value %T", v)
}

// exportClosure wraps a closure as a host function. Applying it re-enters
// the machine.
func (m *Machine) exportClosure(cl *Closure) *value.Lambda {
	lam := m.g.Node(cl.Node)
	return &value.Lambda{
		Name: lam.Names[0],
		Apply: func(arg *value.Thunk) (value.Value, error) {
			frame := newFrame(cl.Env, lam.Names)
			frame.slots[0] = m.hostCell(arg)
			h, err := m.WHNF(lam.A, frame)
			if err == nil {
				return m.toHost(h)
			}
			if !errors.Is(err, ErrUnsupported) || !m.detached || m.fallback == nil {
				return nil, err
			}
			m.log.V(1).Info("host fallback for exported function", "at", lam.Span().String(), "reason", err.Error())
			fn, err := m.fallback(lam.Expr, m.hostEnv(cl.Env))
			if err != nil {
				return nil, err
			}
			return fn.(*value.Lambda).Apply(arg)
		},
	}
}

// fallbackNode evaluates the expression behind ref with the host, in a
// host environment rebuilt from env.
func (m *Machine) fallbackNode(ref term.Ref, env *Env) (value.Value, error) {
	n := m.g.Node(ref)
	if m.fallback == nil {
		return nil, unsupportedf("no host fallback for %s", n.Kind)
	}
	if n.Kind == term.KWithVar {
		env = env.up(n.Depth)
	}
	m.log.V(1).Info("host fallback for detached cell", "at", n.Span().String(), "kind", n.Kind.String())
	return m.fallback(n.Expr, m.hostEnv(env))
}

// hostEnv rebuilds the host environment a frame chain stands for. Slots
// are bound to their cells' thunks, so both sides share every value.
func (m *Machine) hostEnv(env *Env) *value.Env {
	if env == nil {
		if m.root == nil {
			return value.NewEnv(nil)
		}
		return m.root
	}
	parent := m.hostEnv(env.parent)
	if env.with != nil {
		return value.NewWithEnv(parent, env.with.Thunk())
	}
	he := value.NewEnv(parent)
	for i, name := range env.names {
		if c := env.slots[i]; c != nil {
			he.Set(name, c.Thunk())
		}
	}
	return he
}
