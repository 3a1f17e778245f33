// Package classify decides which expressions the graph engine accepts.
//
// The decision is purely syntactic and covers the whole tree: a construct
// the engine cannot handle rejects the expression even when it sits in a
// branch or binding that evaluation would never reach.
package classify

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/builtins"
)

// Rejection is one reason an expression was not admitted.
type Rejection struct {
	Span   ast.Span
	Reason string
}

func (r *Rejection) Error() string {
	if r.Span == (ast.Span{}) {
		return r.Reason
	}
	return fmt.Sprintf("%s: %s", r.Span, r.Reason)
}

type scope struct {
	bindings map[string]bool
	parent   *scope
}

func newScope(parent *scope, names ...string) *scope {
	s := &scope{bindings: make(map[string]bool, len(names)), parent: parent}
	for _, n := range names {
		s.bindings[n] = true
	}
	return s
}

func (s *scope) has(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.bindings[name] {
			return true
		}
	}
	return false
}

type classifier struct {
	errs *multierror.Error
}

// CanEvaluate reports whether the engine admits expr.
func CanEvaluate(expr ast.Expr) bool {
	return Explain(expr) == nil
}

// Explain returns nil when expr is admitted, and otherwise a
// *multierror.Error listing every *Rejection found in the tree.
func Explain(expr ast.Expr) error {
	c := &classifier{}
	if expr == nil {
		c.reject(ast.Span{}, "empty expression")
	} else {
		c.check(expr, nil)
	}
	return c.errs.ErrorOrNil()
}

func (c *classifier) reject(span ast.Span, format string, args ...any) {
	c.errs = multierror.Append(c.errs, &Rejection{Span: span, Reason: fmt.Sprintf(format, args...)})
}

func (c *classifier) check(expr ast.Expr, s *scope) {
	switch e := expr.(type) {
	case *ast.IntLiteral, *ast.FloatLiteral, *ast.PathLiteral:
		// admitted

	case *ast.StrLiteral:
		if !constantString(e) {
			c.reject(e.Span, "string interpolation of a non-constant expression")
		}

	case *ast.Var:
		if !s.has(e.Name) && builtins.IsBuiltinName(e.Name) {
			c.reject(e.Span, "reference to builtin '%s'", e.Name)
		}

	case *ast.Lambda:
		if e.Formals != nil {
			c.reject(e.Span, "function with a formal argument pattern")
			for _, f := range e.Formals.Entries {
				if f.Default != nil {
					c.check(f.Default, s)
				}
			}
			c.check(e.Body, s)
			return
		}
		c.check(e.Body, newScope(s, e.Param))

	case *ast.Apply:
		c.check(e.Fn, s)
		c.check(e.Arg, s)

	case *ast.Let:
		inner := newScope(s, ast.BindingNames(e.Bindings)...)
		c.checkGroup(e.Span, e.Bindings, s, inner, "let")
		c.check(e.Body, inner)

	case *ast.AttrSet:
		if e.Rec {
			inner := newScope(s, ast.BindingNames(e.Bindings)...)
			c.checkGroup(e.Span, e.Bindings, s, inner, "rec")
			return
		}
		c.checkBindings(e.Bindings, s, s)

	case *ast.With:
		c.check(e.Scope, s)
		c.check(e.Body, s)

	case *ast.Assert:
		c.check(e.Cond, s)
		c.check(e.Body, s)

	case *ast.IfExpr:
		c.check(e.Cond, s)
		c.check(e.Then, s)
		c.check(e.Else, s)

	case *ast.Select:
		c.checkPath(e.Path)
		c.check(e.Base, s)
		if e.Default != nil {
			c.check(e.Default, s)
		}

	case *ast.HasAttr:
		if len(e.Path) > 1 {
			c.reject(e.Span, "multi-segment '?' path")
		}
		c.checkPath(e.Path)
		c.check(e.Base, s)

	case *ast.ListExpr:
		for _, el := range e.Elements {
			c.check(el, s)
		}

	case *ast.BinaryExpr:
		switch e.Op {
		case ast.OpAdd, ast.OpSub:
			if isFloatLiteral(e.Left) || isFloatLiteral(e.Right) {
				c.reject(e.Span, "float arithmetic")
			}
		case ast.OpEqEq, ast.OpNeq, ast.OpAnd, ast.OpOr, ast.OpImpl, ast.OpConcat, ast.OpUpdate:
		default:
			c.reject(e.Span, "operator '%s'", e.Op)
		}
		c.check(e.Left, s)
		c.check(e.Right, s)

	case *ast.UnaryExpr:
		if e.Op == ast.OpNeg && isFloatLiteral(e.Operand) {
			c.reject(e.Span, "float arithmetic")
		}
		c.check(e.Operand, s)

	default:
		c.reject(expr.NodeSpan(), "unsupported expression %s", expr.Kind())
	}
}

func (c *classifier) checkPath(path []ast.AttrName) {
	for _, n := range path {
		if !n.Static() {
			c.reject(n.Span, "dynamic attribute name")
		}
	}
}

// checkBindings checks binding values. Plain inherits resolve in outer,
// everything else in inner.
func (c *classifier) checkBindings(bindings []ast.Binding, outer, inner *scope) {
	for _, b := range bindings {
		switch b := b.(type) {
		case *ast.AttrBinding:
			c.checkPath(b.Path)
			c.check(b.Value, inner)
		case *ast.Inherit:
			c.checkPath(b.Names)
			if b.From != nil {
				c.check(b.From, inner)
				continue
			}
			for _, n := range b.Names {
				if n.Static() && !outer.has(n.Name) && builtins.IsBuiltinName(n.Name) {
					c.reject(n.Span, "reference to builtin '%s'", n.Name)
				}
			}
		}
	}
}

// checkGroup checks the bindings of a let block or rec set and rejects
// groups whose members depend on each other cyclically.
func (c *classifier) checkGroup(span ast.Span, bindings []ast.Binding, outer, inner *scope, what string) {
	c.checkBindings(bindings, outer, inner)
	if cycle := findCycle(bindings); cycle != "" {
		c.reject(span, "cyclic %s binding '%s'", what, cycle)
	}
}

// constantString reports whether every interpolation in s is itself a
// constant string.
func constantString(s *ast.StrLiteral) bool {
	for _, p := range s.Parts {
		if p.Expr == nil {
			continue
		}
		inner, ok := p.Expr.(*ast.StrLiteral)
		if !ok || !constantString(inner) {
			return false
		}
	}
	return true
}

func isFloatLiteral(e ast.Expr) bool {
	_, ok := e.(*ast.FloatLiteral)
	return ok
}
