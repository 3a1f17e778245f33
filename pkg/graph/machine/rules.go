package machine

import (
	"errors"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/layers"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/term"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// errUseDefault tells the reduction loop to continue with a select's
// `or` branch.
var errUseDefault = errors.New("use default")

func (m *Machine) applyOther(fh Head, arg *Cell, n *term.Node) (Head, error) {
	switch f := fh.(type) {
	case *Foreign:
		v, err := f.Fn.Apply(arg.Thunk())
		if err != nil {
			return nil, err
		}
		return m.fromHost(v)
	case *Attrs:
		if sym, ok := m.g.Symbols.Lookup("__functor"); ok {
			if _, ok := f.Top.Lookup(sym); ok {
				return nil, unsupportedf("application of a set with __functor")
			}
		}
	}
	return nil, diagnostics.NotAFunction(Describe(fh), n.Span())
}

func (m *Machine) boolean(ref term.Ref, env *Env, span ast.Span) (bool, error) {
	h, err := m.WHNF(ref, env)
	if err != nil {
		return false, err
	}
	b, ok := h.(Bool)
	if !ok {
		return false, diagnostics.TypeMismatch(Describe(h), "a Boolean", span)
	}
	return bool(b), nil
}

func (m *Machine) selectPath(n *term.Node, env *Env) (Head, error) {
	h, err := m.WHNF(n.A, env)
	if err != nil {
		return nil, err
	}
	for _, sym := range n.Path {
		attrs, ok := h.(*Attrs)
		if !ok {
			if n.C != term.NoRef {
				return nil, errUseDefault
			}
			return nil, diagnostics.TypeMismatch(Describe(h), "a set", n.Span())
		}
		c, ok := attrs.Top.Lookup(sym)
		if !ok {
			if n.C != term.NoRef {
				return nil, errUseDefault
			}
			return nil, diagnostics.MissingAttr(m.g.Symbols.Name(sym), n.Span())
		}
		if h, err = c.Force(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (m *Machine) hasAttr(n *term.Node, env *Env) (Head, error) {
	h, err := m.WHNF(n.A, env)
	if err != nil {
		return nil, err
	}
	attrs, ok := h.(*Attrs)
	if !ok {
		return Bool(false), nil
	}
	_, found := attrs.Top.Lookup(n.Sym)
	return Bool(found), nil
}

// attrLayer builds a set literal, stacked on its parent set for
// `a // { … }`. Entry values stay unforced.
func (m *Machine) attrLayer(n *term.Node, env *Env) (Head, error) {
	var parent *layers.Layer[*Cell]
	if n.A != term.NoRef {
		ph, err := m.WHNF(n.A, env)
		if err != nil {
			return nil, err
		}
		attrs, ok := ph.(*Attrs)
		if !ok {
			return nil, diagnostics.TypeMismatch(Describe(ph), "a set", n.Span())
		}
		parent = attrs.Top
	}
	own := n.Layer.Own()
	entries := make([]layers.Entry[*Cell], len(own))
	for i, e := range own {
		entries[i] = layers.Entry[*Cell]{Key: e.Key, Value: m.cellFor(e.Value, env, false)}
	}
	top, flattened := layers.New(entries, parent)
	if flattened {
		m.flattened(n)
	}
	return &Attrs{Top: top}, nil
}

func (m *Machine) flattened(n *term.Node) {
	m.log.V(1).Info("flattened attribute layers", "at", n.Span().String(), "bound", layers.MaxChain)
	if m.onFlat != nil {
		m.onFlat()
	}
}

func (m *Machine) binOp(n *term.Node, env *Env) (Head, error) {
	span := n.Span()
	switch n.Op {
	case term.OpAnd, term.OpOr, term.OpImpl:
		l, err := m.boolean(n.A, env, span)
		if err != nil {
			return nil, err
		}
		switch {
		case n.Op == term.OpAnd && !l:
			return Bool(false), nil
		case n.Op == term.OpOr && l:
			return Bool(true), nil
		case n.Op == term.OpImpl && !l:
			return Bool(true), nil
		}
		r, err := m.boolean(n.B, env, span)
		if err != nil {
			return nil, err
		}
		return Bool(r), nil
	}

	l, err := m.WHNF(n.A, env)
	if err != nil {
		return nil, err
	}
	r, err := m.WHNF(n.B, env)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case term.OpAdd, term.OpSub:
		x, okx := l.(Int)
		y, oky := r.(Int)
		if !okx || !oky {
			return nil, unsupportedf("'%s' on %s and %s", n.Op, Describe(l), Describe(r))
		}
		var v value.Value
		if n.Op == term.OpAdd {
			v, err = value.AddInt(int64(x), int64(y), span)
		} else {
			v, err = value.SubInt(int64(x), int64(y), span)
		}
		if err != nil {
			return nil, err
		}
		return Int(v.(value.Int)), nil

	case term.OpEq, term.OpNeq:
		lv, err := m.toHost(l)
		if err != nil {
			return nil, err
		}
		rv, err := m.toHost(r)
		if err != nil {
			return nil, err
		}
		eq, err := value.Equal(lv, rv)
		if err != nil {
			return nil, err
		}
		return Bool(eq == (n.Op == term.OpEq)), nil

	case term.OpConcat:
		ll, ok := l.(*List)
		if !ok {
			return nil, diagnostics.TypeMismatch(Describe(l), "a list", span)
		}
		rl, ok := r.(*List)
		if !ok {
			return nil, diagnostics.TypeMismatch(Describe(r), "a list", span)
		}
		elems := make([]*Cell, 0, len(ll.Elems)+len(rl.Elems))
		elems = append(append(elems, ll.Elems...), rl.Elems...)
		return &List{Elems: elems}, nil

	case term.OpUpdate:
		la, ok := l.(*Attrs)
		if !ok {
			return nil, diagnostics.TypeMismatch(Describe(l), "a set", span)
		}
		ra, ok := r.(*Attrs)
		if !ok {
			return nil, diagnostics.TypeMismatch(Describe(r), "a set", span)
		}
		top, flattened := layers.Update(la.Top, ra.Top)
		if flattened {
			m.flattened(n)
		}
		return &Attrs{Top: top}, nil
	}
	return nil, unsupportedf("operator %s", n.Op)
}

// withVar finds the cell a `with` scope supplies for n, innermost scope
// first, then the host's own `with` scopes.
func (m *Machine) withVar(n *term.Node, env *Env) (*Cell, error) {
	for e := env; e != nil; e = e.parent {
		if e.with == nil {
			continue
		}
		h, err := e.with.Force()
		if err != nil {
			return nil, err
		}
		attrs, ok := h.(*Attrs)
		if !ok {
			return nil, diagnostics.TypeMismatch(Describe(h), "a set", ast.Span{})
		}
		if c, ok := attrs.Top.Lookup(n.Sym); ok {
			return c, nil
		}
	}
	name := m.g.Symbols.Name(n.Sym)
	if m.root != nil {
		t, ok, err := m.root.LookupWith(name)
		if err != nil {
			return nil, err
		}
		if ok {
			return m.hostCell(t), nil
		}
	}
	return nil, diagnostics.UndefinedVar(name, n.Span())
}
