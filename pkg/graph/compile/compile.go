// Package compile translates admitted expressions into a term graph.
//
// Variables bound inside the expression become static (depth, slot)
// addresses into the machine's frames. Free variables are resolved against
// the host environment once, at compile time. Compilation never forces a
// value.
package compile

import (
	"errors"
	"fmt"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/layers"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/symbol"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/term"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// ErrUnsupported is returned for constructs the graph cannot express. The
// classifier rejects all of them beforehand, so seeing it means the two
// disagree.
var ErrUnsupported = errors.New("construct not supported by the graph compiler")

// frame mirrors one runtime frame. A `with` frame has no slots.
type frame struct {
	slots  map[string]int
	with   bool
	parent *frame
}

func newFrame(parent *frame, names []string) *frame {
	f := &frame{slots: make(map[string]int, len(names)), parent: parent}
	for i, n := range names {
		f.slots[n] = i
	}
	return f
}

type compiler struct {
	g   *term.Graph
	env *value.Env
}

// Compile adds expr to g and returns the root node. env supplies the
// free variables.
func Compile(g *term.Graph, expr ast.Expr, env *value.Env) (term.Ref, error) {
	if expr == nil {
		return term.NoRef, fmt.Errorf("%w: empty expression", ErrUnsupported)
	}
	c := &compiler{g: g, env: env}
	return c.compile(expr, nil)
}

func unsupported(n ast.Node, what string) error {
	return fmt.Errorf("%w: %s at %s", ErrUnsupported, what, n.NodeSpan())
}

func (c *compiler) compile(expr ast.Expr, f *frame) (term.Ref, error) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return c.g.Int(e.Value, e), nil
	case *ast.FloatLiteral:
		return c.g.Float(e.Value, e), nil
	case *ast.PathLiteral:
		return c.g.Path(e.Value, e), nil
	case *ast.StrLiteral:
		s, ok := foldString(e)
		if !ok {
			return term.NoRef, unsupported(e, "string interpolation")
		}
		return c.g.Str(s, e), nil

	case *ast.Var:
		return c.variable(e.Name, f, 0, e), nil

	case *ast.Lambda:
		if e.Formals != nil {
			return term.NoRef, unsupported(e, "formal argument pattern")
		}
		lam := c.g.Lambda(e.Param, e)
		body, err := c.compile(e.Body, newFrame(f, []string{e.Param}))
		if err != nil {
			return term.NoRef, err
		}
		c.g.SetBody(lam, body)
		return lam, nil

	case *ast.Apply:
		fn, err := c.compile(e.Fn, f)
		if err != nil {
			return term.NoRef, err
		}
		arg, err := c.compile(e.Arg, f)
		if err != nil {
			return term.NoRef, err
		}
		return c.g.Apply(fn, arg, e), nil

	case *ast.Let:
		let, inner, err := c.group(e.Bindings, f, e)
		if err != nil {
			return term.NoRef, err
		}
		body, err := c.compile(e.Body, inner)
		if err != nil {
			return term.NoRef, err
		}
		c.g.SetBody(let, body)
		return let, nil

	case *ast.AttrSet:
		if e.Rec {
			return c.recSet(e, f)
		}
		layer, err := c.layer(e.Bindings, f)
		if err != nil {
			return term.NoRef, err
		}
		return c.g.AttrLayer(layer, term.NoRef, e), nil

	case *ast.With:
		scope, err := c.compile(e.Scope, f)
		if err != nil {
			return term.NoRef, err
		}
		body, err := c.compile(e.Body, &frame{with: true, parent: f})
		if err != nil {
			return term.NoRef, err
		}
		return c.g.With(scope, body, e), nil

	case *ast.Assert:
		refs, err := c.compileAll(f, e.Cond, e.Body)
		if err != nil {
			return term.NoRef, err
		}
		return c.g.Assert(refs[0], refs[1], e), nil

	case *ast.IfExpr:
		refs, err := c.compileAll(f, e.Cond, e.Then, e.Else)
		if err != nil {
			return term.NoRef, err
		}
		return c.g.If(refs[0], refs[1], refs[2], e), nil

	case *ast.Select:
		return c.selectExpr(e, f)

	case *ast.HasAttr:
		if len(e.Path) != 1 || !e.Path[0].Static() {
			return term.NoRef, unsupported(e, "attribute test path")
		}
		base, err := c.compile(e.Base, f)
		if err != nil {
			return term.NoRef, err
		}
		return c.g.HasAttr(base, c.g.Symbols.Intern(e.Path[0].Name), e), nil

	case *ast.ListExpr:
		elems, err := c.compileAll(f, e.Elements...)
		if err != nil {
			return term.NoRef, err
		}
		return c.g.List(elems, e), nil

	case *ast.BinaryExpr:
		return c.binary(e, f)

	case *ast.UnaryExpr:
		operand, err := c.compile(e.Operand, f)
		if err != nil {
			return term.NoRef, err
		}
		if e.Op == ast.OpNot {
			return c.g.Not(operand, e), nil
		}
		return c.g.BinOp(term.OpSub, c.g.Int(0, e), operand, e), nil
	}
	return term.NoRef, unsupported(expr, expr.Kind())
}

func (c *compiler) compileAll(f *frame, exprs ...ast.Expr) ([]term.Ref, error) {
	refs := make([]term.Ref, len(exprs))
	for i, e := range exprs {
		r, err := c.compile(e, f)
		if err != nil {
			return nil, err
		}
		refs[i] = r
	}
	return refs, nil
}

// variable resolves name starting skip frames above f. Lexical bindings
// win over `with` scopes wherever they are, as in the host.
func (c *compiler) variable(name string, f *frame, skip int, expr ast.Expr) term.Ref {
	depth := 0
	withSeen := false
	for cur := f; cur != nil; cur = cur.parent {
		if depth >= skip {
			if cur.with {
				withSeen = true
			} else if slot, ok := cur.slots[name]; ok {
				return c.g.Var(depth, slot, expr)
			}
		}
		depth++
	}
	switch name {
	case "true":
		return c.g.Bool(true, expr)
	case "false":
		return c.g.Bool(false, expr)
	}
	if c.env != nil {
		if t, ok := c.env.LookupLexical(name); ok {
			return c.g.HostVar(name, t, expr)
		}
	}
	if withSeen || (c.env != nil && c.env.HasWith()) {
		r := c.g.WithVar(name, expr)
		c.g.Node(r).Depth = skip
		return r
	}
	return c.g.Undefined(name, expr)
}

// group reserves the frame of a let block or rec set and compiles its
// bindings inside it.
func (c *compiler) group(bindings []ast.Binding, f *frame, expr ast.Expr) (term.Ref, *frame, error) {
	names := ast.BindingNames(bindings)
	inner := newFrame(f, names)
	let := c.g.Let(names, expr)
	refs := make([]term.Ref, len(names))
	for _, b := range bindings {
		switch b := b.(type) {
		case *ast.AttrBinding:
			if len(b.Path) != 1 || !b.Path[0].Static() {
				return term.NoRef, nil, unsupported(b, "attribute path")
			}
			r, err := c.compile(b.Value, inner)
			if err != nil {
				return term.NoRef, nil, err
			}
			refs[inner.slots[b.Path[0].Name]] = r
		case *ast.Inherit:
			for _, n := range b.Names {
				r, err := c.inherit(b, n, inner, 1)
				if err != nil {
					return term.NoRef, nil, err
				}
				refs[inner.slots[n.Name]] = r
			}
		}
	}
	c.g.SetBindings(let, refs)
	return let, inner, nil
}

// recSet compiles `rec { … }` as a let whose body is a set of references
// to its own slots.
func (c *compiler) recSet(e *ast.AttrSet, f *frame) (term.Ref, error) {
	let, inner, err := c.group(e.Bindings, f, e)
	if err != nil {
		return term.NoRef, err
	}
	names := ast.BindingNames(e.Bindings)
	entries := make([]layers.Entry[term.Ref], len(names))
	for i, n := range names {
		entries[i] = layers.Entry[term.Ref]{Key: c.g.Symbols.Intern(n), Value: c.g.Var(0, inner.slots[n], e)}
	}
	layer, _ := layers.New(entries, nil)
	c.g.SetBody(let, c.g.AttrLayer(layer, term.NoRef, e))
	return let, nil
}

// layer compiles the bindings of a non-recursive set in f.
func (c *compiler) layer(bindings []ast.Binding, f *frame) (*layers.Layer[term.Ref], error) {
	var entries []layers.Entry[term.Ref]
	for _, b := range bindings {
		switch b := b.(type) {
		case *ast.AttrBinding:
			if len(b.Path) != 1 || !b.Path[0].Static() {
				return nil, unsupported(b, "attribute path")
			}
			r, err := c.compile(b.Value, f)
			if err != nil {
				return nil, err
			}
			entries = append(entries, layers.Entry[term.Ref]{Key: c.g.Symbols.Intern(b.Path[0].Name), Value: r})
		case *ast.Inherit:
			for _, n := range b.Names {
				r, err := c.inherit(b, n, f, 0)
				if err != nil {
					return nil, err
				}
				entries = append(entries, layers.Entry[term.Ref]{Key: c.g.Symbols.Intern(n.Name), Value: r})
			}
		}
	}
	layer, _ := layers.New(entries, nil)
	return layer, nil
}

// inherit compiles one name of an inherit clause. A plain inherit skips
// skip frames, so inside a binding group it never sees the group itself.
func (c *compiler) inherit(b *ast.Inherit, n ast.AttrName, f *frame, skip int) (term.Ref, error) {
	if !n.Static() {
		return term.NoRef, unsupported(b, "dynamic inherit")
	}
	if b.From == nil {
		return c.variable(n.Name, f, skip, &ast.Var{Span: n.Span, Name: n.Name}), nil
	}
	from, err := c.compile(b.From, f)
	if err != nil {
		return term.NoRef, err
	}
	sel := &ast.Select{Span: n.Span, Base: b.From, Path: []ast.AttrName{n}}
	return c.g.Select(from, []symbol.Symbol{c.g.Symbols.Intern(n.Name)}, term.NoRef, sel), nil
}

func (c *compiler) selectExpr(e *ast.Select, f *frame) (term.Ref, error) {
	path := make([]symbol.Symbol, len(e.Path))
	for i, seg := range e.Path {
		if !seg.Static() {
			return term.NoRef, unsupported(e, "dynamic attribute name")
		}
		path[i] = c.g.Symbols.Intern(seg.Name)
	}
	base, err := c.compile(e.Base, f)
	if err != nil {
		return term.NoRef, err
	}
	def := term.NoRef
	if e.Default != nil {
		if def, err = c.compile(e.Default, f); err != nil {
			return term.NoRef, err
		}
	}
	return c.g.Select(base, path, def, e), nil
}

var binaryOps = map[ast.BinaryOp]term.Op{
	ast.OpAdd:    term.OpAdd,
	ast.OpSub:    term.OpSub,
	ast.OpEqEq:   term.OpEq,
	ast.OpNeq:    term.OpNeq,
	ast.OpAnd:    term.OpAnd,
	ast.OpOr:     term.OpOr,
	ast.OpImpl:   term.OpImpl,
	ast.OpConcat: term.OpConcat,
	ast.OpUpdate: term.OpUpdate,
}

func (c *compiler) binary(e *ast.BinaryExpr, f *frame) (term.Ref, error) {
	op, ok := binaryOps[e.Op]
	if !ok {
		return term.NoRef, unsupported(e, fmt.Sprintf("operator '%s'", e.Op))
	}
	left, err := c.compile(e.Left, f)
	if err != nil {
		return term.NoRef, err
	}
	// `a // { … }` stacks a layer on a without merging anything.
	if set, isSet := e.Right.(*ast.AttrSet); op == term.OpUpdate && isSet && !set.Rec {
		layer, err := c.layer(set.Bindings, f)
		if err != nil {
			return term.NoRef, err
		}
		return c.g.AttrLayer(layer, left, e), nil
	}
	right, err := c.compile(e.Right, f)
	if err != nil {
		return term.NoRef, err
	}
	return c.g.BinOp(op, left, right, e), nil
}

// foldString concatenates a string whose interpolations are all constant
// strings.
func foldString(s *ast.StrLiteral) (string, bool) {
	var out string
	for _, p := range s.Parts {
		if p.Expr == nil {
			out += p.Text
			continue
		}
		inner, ok := p.Expr.(*ast.StrLiteral)
		if !ok {
			return "", false
		}
		folded, ok := foldString(inner)
		if !ok {
			return "", false
		}
		out += folded
	}
	return out, true
}
