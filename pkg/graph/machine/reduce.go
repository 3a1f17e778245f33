// Package machine reduces term graphs to weak head normal form.
//
// Reduction is call by need: arguments and bindings become cells that are
// forced at most once. Tail positions loop instead of recursing. Anything
// the machine cannot reproduce exactly as the host would fails with
// ErrUnsupported, and the caller hands the expression to the host instead.
package machine

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/term"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

var (
	// ErrUnsupported marks a reduction the machine declines at run time.
	ErrUnsupported = errors.New("unsupported by the graph machine")
	// ErrNotExtractable is returned by Extract for a bare function.
	ErrNotExtractable = errors.New("value cannot be extracted")
)

const (
	DefaultMaxSteps = 5_000_000
	DefaultMaxDepth = 10_000
)

// Fallback evaluates expr in env with the host evaluator.
type Fallback func(expr ast.Expr, env *value.Env) (value.Value, error)

// Machine reduces the nodes of one graph. It is not safe for concurrent
// use.
type Machine struct {
	g        *term.Graph
	root     *value.Env
	log      logr.Logger
	fallback Fallback
	onFlat   func()

	maxSteps int64
	steps    int64
	maxDepth int
	depth    int

	detached  bool
	hostCells map[*value.Thunk]*Cell
}

// Option configures a Machine.
type Option func(*Machine)

func WithLogger(log logr.Logger) Option {
	return func(m *Machine) { m.log = log }
}

// WithFallback sets the host evaluator used for detached cells.
func WithFallback(fb Fallback) Option {
	return func(m *Machine) { m.fallback = fb }
}

// WithMaxSteps bounds the number of reduction steps. Zero disables the
// bound.
func WithMaxSteps(n int64) Option {
	return func(m *Machine) { m.maxSteps = n }
}

// WithMaxDepth bounds nested reductions. Zero disables the bound.
func WithMaxDepth(n int) Option {
	return func(m *Machine) { m.maxDepth = n }
}

// WithFlattenHook registers fn to run whenever a layer chain is flattened.
func WithFlattenHook(fn func()) Option {
	return func(m *Machine) { m.onFlat = fn }
}

// New creates a machine for g. root is the host environment free
// variables were resolved against.
func New(g *term.Graph, root *value.Env, opts ...Option) *Machine {
	m := &Machine{
		g:         g,
		root:      root,
		log:       logr.Discard(),
		maxSteps:  DefaultMaxSteps,
		maxDepth:  DefaultMaxDepth,
		hostCells: make(map[*value.Thunk]*Cell),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Steps returns the number of reduction steps taken so far.
func (m *Machine) Steps() int64 {
	return m.steps
}

// Detach marks the end of the attempt. From then on cells forced through
// their host thunks fall back to the host evaluator instead of failing
// with ErrUnsupported.
func (m *Machine) Detach() {
	m.detached = true
}

// Eval reduces the root of the graph.
func (m *Machine) Eval(ref term.Ref) (Head, error) {
	return m.WHNF(ref, nil)
}

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

// WHNF reduces ref in env.
func (m *Machine) WHNF(ref term.Ref, env *Env) (Head, error) {
	m.depth++
	defer func() { m.depth-- }()
	if m.maxDepth > 0 && m.depth > m.maxDepth {
		return nil, unsupportedf("reduction nested deeper than %d", m.maxDepth)
	}

	for {
		m.steps++
		if m.maxSteps > 0 && m.steps > m.maxSteps {
			return nil, unsupportedf("step budget of %d exhausted", m.maxSteps)
		}

		n := m.g.Node(ref)
		switch n.Kind {
		case term.KInt, term.KFloat, term.KBool, term.KString, term.KPath:
			return literal(n), nil

		case term.KVar:
			return env.lookup(n.Depth, n.Slot).Force()

		case term.KHostVar:
			return m.hostCell(n.Host).Force()

		case term.KWithVar:
			c, err := m.withVar(n, env)
			if err != nil {
				return nil, err
			}
			return c.Force()

		case term.KUndefined:
			return nil, diagnostics.UndefinedVar(m.g.Symbols.Name(n.Sym), n.Span())

		case term.KLambda:
			return &Closure{Node: ref, Env: env}, nil

		case term.KApply:
			fh, err := m.WHNF(n.A, env)
			if err != nil {
				return nil, err
			}
			cl, ok := fh.(*Closure)
			if !ok {
				return m.applyOther(fh, m.cellFor(n.B, env, false), n)
			}
			lam := m.g.Node(cl.Node)
			frame := newFrame(cl.Env, lam.Names)
			frame.slots[0] = m.cellFor(n.B, env, false)
			ref, env = lam.A, frame

		case term.KLet:
			frame := newFrame(env, n.Names)
			for i, r := range n.Refs {
				frame.slots[i] = m.cellFor(r, frame, true)
			}
			ref, env = n.A, frame

		case term.KWith:
			ref, env = n.B, newWithFrame(env, m.cellFor(n.A, env, false))

		case term.KAssert:
			ok, err := m.boolean(n.A, env, n.Span())
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, diagnostics.AssertionFailed(n.Span())
			}
			ref = n.B

		case term.KIf:
			ok, err := m.boolean(n.A, env, n.Span())
			if err != nil {
				return nil, err
			}
			if ok {
				ref = n.B
			} else {
				ref = n.C
			}

		case term.KSelect:
			h, err := m.selectPath(n, env)
			if errors.Is(err, errUseDefault) {
				ref = n.C
				continue
			}
			return h, err

		case term.KBinOp:
			return m.binOp(n, env)

		case term.KNot:
			b, err := m.boolean(n.A, env, n.Span())
			if err != nil {
				return nil, err
			}
			return Bool(!b), nil

		case term.KAttrLayer:
			return m.attrLayer(n, env)

		case term.KHasAttr:
			return m.hasAttr(n, env)

		case term.KList:
			elems := make([]*Cell, len(n.Refs))
			for i, r := range n.Refs {
				elems[i] = m.cellFor(r, env, false)
			}
			return &List{Elems: elems}, nil

		default:
			return nil, unsupportedf("node kind %s", n.Kind)
		}
	}
}

func literal(n *term.Node) Head {
	switch n.Kind {
	case term.KInt:
		return Int(n.Int)
	case term.KFloat:
		return Float(n.Float)
	case term.KBool:
		return Bool(n.Bool)
	case term.KString:
		return String(n.Str)
	}
	return Path(n.Str)
}

// cellFor suspends ref in env. Variables share the cell of the slot they
// name, except references into a let frame that is still being built,
// whose slots may not be filled yet.
func (m *Machine) cellFor(ref term.Ref, env *Env, building bool) *Cell {
	n := m.g.Node(ref)
	switch n.Kind {
	case term.KInt, term.KFloat, term.KBool, term.KString, term.KPath:
		return m.forcedCell(literal(n))
	case term.KLambda:
		return m.forcedCell(&Closure{Node: ref, Env: env})
	case term.KVar:
		if !(building && n.Depth == 0) {
			return env.lookup(n.Depth, n.Slot)
		}
	case term.KHostVar:
		return m.hostCell(n.Host)
	}
	return m.lazyCell(ref, env)
}
