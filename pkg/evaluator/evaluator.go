// Package evaluator implements the reference tree-walking evaluator.
package evaluator

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// Evaluator evaluates expressions lazily: results are in weak head normal
// form, with list elements and attributes left as thunks.
type Evaluator struct {
	ctx     context.Context
	log     logr.Logger
	budget  Budget
	tracker BudgetTracker
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(ev *Evaluator) { ev.log = log }
}

// WithMaxCallDepth bounds nested function applications. Zero disables the check.
func WithMaxCallDepth(n int) Option {
	return func(ev *Evaluator) { ev.budget.MaxCallDepth = n }
}

// WithContext makes evaluation stop once ctx is done.
func WithContext(ctx context.Context) Option {
	return func(ev *Evaluator) { ev.ctx = ctx }
}

// New creates an evaluator.
func New(opts ...Option) *Evaluator {
	ev := &Evaluator{
		log:    logr.Discard(),
		budget: Budget{MaxCallDepth: DefaultMaxCallDepth},
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Calls returns the number of function applications performed so far.
func (ev *Evaluator) Calls() int64 {
	return ev.tracker.Calls
}

// Thunk suspends the evaluation of expr in env. Literals, lambdas and
// lexically bound variables are resolved without allocating a computation.
func (ev *Evaluator) Thunk(expr ast.Expr, env *value.Env) *value.Thunk {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return value.Forced(value.Int(e.Value))
	case *ast.FloatLiteral:
		return value.Forced(value.Float(e.Value))
	case *ast.PathLiteral:
		return value.Forced(value.Path(e.Value))
	case *ast.Lambda:
		return value.Forced(ev.closure(e, env))
	case *ast.Var:
		return ev.varThunk(e.Name, e.Span, env)
	}
	return value.NewThunk(func() (value.Value, error) {
		return ev.Eval(expr, env)
	})
}

func (ev *Evaluator) varThunk(name string, span ast.Span, env *value.Env) *value.Thunk {
	if t, ok := env.LookupLexical(name); ok {
		return t
	}
	return value.NewThunk(func() (value.Value, error) {
		return ev.lookup(name, span, env)
	})
}

func (ev *Evaluator) lookup(name string, span ast.Span, env *value.Env) (value.Value, error) {
	t, ok, err := env.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, diagnostics.UndefinedVar(name, span)
	}
	return t.Force()
}

// Eval evaluates expr in env to weak head normal form.
func (ev *Evaluator) Eval(expr ast.Expr, env *value.Env) (value.Value, error) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return value.Int(e.Value), nil

	case *ast.FloatLiteral:
		return value.Float(e.Value), nil

	case *ast.StrLiteral:
		return ev.evalString(e, env)

	case *ast.PathLiteral:
		return value.Path(e.Value), nil

	case *ast.Var:
		return ev.lookup(e.Name, e.Span, env)

	case *ast.Lambda:
		return ev.closure(e, env), nil

	case *ast.Apply:
		fn, err := ev.Eval(e.Fn, env)
		if err != nil {
			return nil, err
		}
		return ev.Apply(fn, ev.Thunk(e.Arg, env), e.Span)

	case *ast.AttrSet:
		return ev.evalAttrSet(e, env)

	case *ast.Select:
		return ev.evalSelect(e, env)

	case *ast.HasAttr:
		return ev.evalHasAttr(e, env)

	case *ast.ListExpr:
		elems := make([]*value.Thunk, len(e.Elements))
		for i, el := range e.Elements {
			elems[i] = ev.Thunk(el, env)
		}
		return &value.List{Elems: elems}, nil

	case *ast.Let:
		inner, err := ev.bindLet(e.Bindings, env)
		if err != nil {
			return nil, err
		}
		return ev.Eval(e.Body, inner)

	case *ast.With:
		return ev.Eval(e.Body, value.NewWithEnv(env, ev.Thunk(e.Scope, env)))

	case *ast.Assert:
		ok, err := ev.evalBool(e.Cond, env, e.Span)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, diagnostics.AssertionFailed(e.Span)
		}
		return ev.Eval(e.Body, env)

	case *ast.IfExpr:
		ok, err := ev.evalBool(e.Cond, env, e.Span)
		if err != nil {
			return nil, err
		}
		if ok {
			return ev.Eval(e.Then, env)
		}
		return ev.Eval(e.Else, env)

	case *ast.BinaryExpr:
		return ev.evalBinary(e, env)

	case *ast.UnaryExpr:
		return ev.evalUnary(e, env)

	case nil:
		return nil, diagnostics.Errorf(diagnostics.EUnsupported, ast.Span{}, "cannot evaluate an empty expression")
	}
	return nil, diagnostics.Errorf(diagnostics.EUnsupported, expr.NodeSpan(), "unsupported expression type: %s", expr.Kind())
}

func (ev *Evaluator) evalBool(expr ast.Expr, env *value.Env, span ast.Span) (bool, error) {
	v, err := ev.Eval(expr, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(value.Bool)
	if !ok {
		return false, diagnostics.TypeMismatch(value.Describe(v), "a Boolean", span)
	}
	return bool(b), nil
}

func (ev *Evaluator) evalString(e *ast.StrLiteral, env *value.Env) (value.Value, error) {
	var sb strings.Builder
	for _, part := range e.Parts {
		if part.Expr == nil {
			sb.WriteString(part.Text)
			continue
		}
		v, err := ev.Eval(part.Expr, env)
		if err != nil {
			return nil, err
		}
		s, err := value.CoerceToString(v, part.Expr.NodeSpan())
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	return value.String(sb.String()), nil
}

// --- Functions ---

func (ev *Evaluator) closure(e *ast.Lambda, env *value.Env) *value.Lambda {
	return &value.Lambda{
		Name: e.Param,
		Apply: func(arg *value.Thunk) (value.Value, error) {
			inner := value.NewEnv(env)
			if e.Param != "" {
				inner.Set(e.Param, arg)
			}
			if e.Formals != nil {
				if err := ev.bindFormals(e, arg, inner); err != nil {
					return nil, err
				}
			}
			return ev.Eval(e.Body, inner)
		},
	}
}

func (ev *Evaluator) bindFormals(e *ast.Lambda, arg *value.Thunk, inner *value.Env) error {
	v, err := arg.Force()
	if err != nil {
		return err
	}
	attrs, ok := v.(*value.Attrs)
	if !ok {
		return diagnostics.TypeMismatch(value.Describe(v), "a set", e.Span)
	}
	known := make(map[string]bool, len(e.Formals.Entries))
	for _, f := range e.Formals.Entries {
		known[f.Name] = true
	}
	for _, f := range e.Formals.Entries {
		if t, ok := attrs.Get(f.Name); ok {
			inner.Set(f.Name, t)
			continue
		}
		if f.Default == nil {
			return diagnostics.Errorf(diagnostics.EArgs, e.Span,
				"function 'anonymous lambda' called without required argument '%s'", f.Name)
		}
		inner.Set(f.Name, ev.bindingThunk(f.Default, inner, known))
	}
	if !e.Formals.Ellipsis {
		for _, name := range attrs.Names() {
			if !known[name] {
				return diagnostics.Errorf(diagnostics.EArgs, e.Span,
					"function 'anonymous lambda' called with unexpected argument '%s'", name)
			}
		}
	}
	return nil
}

// Apply calls fn with arg. Sets with a __functor attribute are callable.
func (ev *Evaluator) Apply(fn value.Value, arg *value.Thunk, span ast.Span) (value.Value, error) {
	switch f := fn.(type) {
	case *value.Lambda:
		if err := ev.enter(span); err != nil {
			return nil, err
		}
		defer ev.leave()
		return f.Apply(arg)
	case *value.Attrs:
		if functor, ok := f.Get("__functor"); ok {
			fv, err := functor.Force()
			if err != nil {
				return nil, err
			}
			self, err := ev.Apply(fv, value.Forced(f), span)
			if err != nil {
				return nil, err
			}
			return ev.Apply(self, arg, span)
		}
	}
	return nil, diagnostics.NotAFunction(value.Describe(fn), span)
}

// --- Bindings ---

// bindingThunk suspends a member of a recursive binding group. A variable
// naming another member is looked up lazily, since that member may not be
// bound yet.
func (ev *Evaluator) bindingThunk(expr ast.Expr, scope *value.Env, group map[string]bool) *value.Thunk {
	if v, ok := expr.(*ast.Var); ok && group[v.Name] {
		return value.NewThunk(func() (value.Value, error) {
			return ev.lookup(v.Name, v.Span, scope)
		})
	}
	return ev.Thunk(expr, scope)
}

func groupOf(bindings []ast.Binding) map[string]bool {
	group := map[string]bool{}
	for _, name := range ast.BindingNames(bindings) {
		group[name] = true
	}
	return group
}

// bindLet creates the recursive scope of a let block.
func (ev *Evaluator) bindLet(bindings []ast.Binding, env *value.Env) (*value.Env, error) {
	inner := value.NewEnv(env)
	group := groupOf(bindings)
	for _, b := range bindings {
		switch b := b.(type) {
		case *ast.AttrBinding:
			if !b.Path[0].Static() {
				return nil, diagnostics.Errorf(diagnostics.EUnsupported, b.Span, "dynamic attributes not allowed in let")
			}
			inner.Set(b.Path[0].Name, ev.bindingThunk(b.Value, inner, group))
		case *ast.Inherit:
			for name, t := range ev.inherit(b, env, inner) {
				inner.Set(name, t)
			}
		}
	}
	return inner, nil
}

// inherit returns the thunks an inherit clause binds. Plain names resolve
// in outer; `inherit (e)` evaluates e in scope.
func (ev *Evaluator) inherit(b *ast.Inherit, outer, scope *value.Env) map[string]*value.Thunk {
	out := make(map[string]*value.Thunk, len(b.Names))
	if b.From == nil {
		for _, n := range b.Names {
			out[n.Name] = ev.varThunk(n.Name, n.Span, outer)
		}
		return out
	}
	from := ev.Thunk(b.From, scope)
	for _, n := range b.Names {
		n := n
		out[n.Name] = value.NewThunk(func() (value.Value, error) {
			v, err := from.Force()
			if err != nil {
				return nil, err
			}
			attrs, ok := v.(*value.Attrs)
			if !ok {
				return nil, diagnostics.TypeMismatch(value.Describe(v), "a set", n.Span)
			}
			t, ok := attrs.Get(n.Name)
			if !ok {
				return nil, diagnostics.MissingAttr(n.Name, n.Span)
			}
			return t.Force()
		})
	}
	return out
}

func (ev *Evaluator) evalAttrSet(e *ast.AttrSet, env *value.Env) (value.Value, error) {
	m := make(map[string]*value.Thunk, len(e.Bindings))
	scope := env
	var group map[string]bool
	if e.Rec {
		scope = value.NewEnv(env)
		group = groupOf(e.Bindings)
	}
	bind := func(name string, t *value.Thunk) {
		m[name] = t
		if e.Rec {
			scope.Set(name, t)
		}
	}

	var dynamic []*ast.AttrBinding
	for _, b := range e.Bindings {
		switch b := b.(type) {
		case *ast.AttrBinding:
			if !b.Path[0].Static() {
				dynamic = append(dynamic, b)
				continue
			}
			bind(b.Path[0].Name, ev.bindingThunk(b.Value, scope, group))
		case *ast.Inherit:
			for name, t := range ev.inherit(b, env, scope) {
				bind(name, t)
			}
		}
	}

	for _, b := range dynamic {
		nv, err := ev.Eval(b.Path[0].Dynamic, scope)
		if err != nil {
			return nil, err
		}
		if _, isNull := nv.(value.Null); isNull {
			continue
		}
		name, ok := nv.(value.String)
		if !ok {
			return nil, diagnostics.TypeMismatch(value.Describe(nv), "a string", b.Path[0].Span)
		}
		if _, dup := m[string(name)]; dup {
			return nil, diagnostics.Errorf(diagnostics.EDupAttr, b.Span, "dynamic attribute '%s' already defined", name)
		}
		m[string(name)] = ev.Thunk(b.Value, scope)
	}
	return value.NewAttrs(m), nil
}

func (ev *Evaluator) attrName(n ast.AttrName, env *value.Env) (string, error) {
	if n.Static() {
		return n.Name, nil
	}
	v, err := ev.Eval(n.Dynamic, env)
	if err != nil {
		return "", err
	}
	s, ok := v.(value.String)
	if !ok {
		return "", diagnostics.TypeMismatch(value.Describe(v), "a string", n.Span)
	}
	return string(s), nil
}

func (ev *Evaluator) evalSelect(e *ast.Select, env *value.Env) (value.Value, error) {
	v, err := ev.Eval(e.Base, env)
	if err != nil {
		return nil, err
	}
	for _, seg := range e.Path {
		name, err := ev.attrName(seg, env)
		if err != nil {
			return nil, err
		}
		attrs, ok := v.(*value.Attrs)
		if !ok {
			if e.Default != nil {
				return ev.Eval(e.Default, env)
			}
			return nil, diagnostics.TypeMismatch(value.Describe(v), "a set", e.Span)
		}
		t, ok := attrs.Get(name)
		if !ok {
			if e.Default != nil {
				return ev.Eval(e.Default, env)
			}
			return nil, diagnostics.MissingAttr(name, e.Span)
		}
		if v, err = t.Force(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (ev *Evaluator) evalHasAttr(e *ast.HasAttr, env *value.Env) (value.Value, error) {
	v, err := ev.Eval(e.Base, env)
	if err != nil {
		return nil, err
	}
	for i, seg := range e.Path {
		name, err := ev.attrName(seg, env)
		if err != nil {
			return nil, err
		}
		attrs, ok := v.(*value.Attrs)
		if !ok {
			return value.Bool(false), nil
		}
		t, ok := attrs.Get(name)
		if !ok {
			return value.Bool(false), nil
		}
		if i == len(e.Path)-1 {
			break
		}
		if v, err = t.Force(); err != nil {
			return nil, err
		}
	}
	return value.Bool(true), nil
}

// --- Operators ---

func (ev *Evaluator) evalUnary(e *ast.UnaryExpr, env *value.Env) (value.Value, error) {
	switch e.Op {
	case ast.OpNot:
		b, err := ev.evalBool(e.Operand, env, e.Span)
		if err != nil {
			return nil, err
		}
		return value.Bool(!b), nil
	case ast.OpNeg:
		v, err := ev.Eval(e.Operand, env)
		if err != nil {
			return nil, err
		}
		return value.Sub(value.Int(0), v, e.Span)
	}
	return nil, fmt.Errorf("unknown unary operator %q", e.Op)
}

func (ev *Evaluator) evalBinary(e *ast.BinaryExpr, env *value.Env) (value.Value, error) {
	switch e.Op {
	case ast.OpAnd:
		l, err := ev.evalBool(e.Left, env, e.Span)
		if err != nil || !l {
			return value.Bool(false), err
		}
		r, err := ev.evalBool(e.Right, env, e.Span)
		return value.Bool(r), err
	case ast.OpOr:
		l, err := ev.evalBool(e.Left, env, e.Span)
		if err != nil || l {
			return value.Bool(l), err
		}
		r, err := ev.evalBool(e.Right, env, e.Span)
		return value.Bool(r), err
	case ast.OpImpl:
		l, err := ev.evalBool(e.Left, env, e.Span)
		if err != nil || !l {
			return value.Bool(true), err
		}
		r, err := ev.evalBool(e.Right, env, e.Span)
		return value.Bool(r), err
	}

	l, err := ev.Eval(e.Left, env)
	if err != nil {
		return nil, err
	}
	r, err := ev.Eval(e.Right, env)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case ast.OpAdd:
		return value.Add(l, r, e.Span)
	case ast.OpSub:
		return value.Sub(l, r, e.Span)
	case ast.OpMul:
		return value.Mul(l, r, e.Span)
	case ast.OpDiv:
		return value.Div(l, r, e.Span)
	case ast.OpEqEq, ast.OpNeq:
		eq, err := value.Equal(l, r)
		if err != nil {
			return nil, err
		}
		return value.Bool(eq == (e.Op == ast.OpEqEq)), nil
	case ast.OpLt, ast.OpLtEq, ast.OpGt, ast.OpGtEq:
		c, err := value.Compare(l, r, e.Span)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case ast.OpLt:
			return value.Bool(c < 0), nil
		case ast.OpLtEq:
			return value.Bool(c <= 0), nil
		case ast.OpGt:
			return value.Bool(c > 0), nil
		}
		return value.Bool(c >= 0), nil
	case ast.OpConcat:
		ll, ok := l.(*value.List)
		if !ok {
			return nil, diagnostics.TypeMismatch(value.Describe(l), "a list", e.Span)
		}
		rl, ok := r.(*value.List)
		if !ok {
			return nil, diagnostics.TypeMismatch(value.Describe(r), "a list", e.Span)
		}
		elems := make([]*value.Thunk, 0, len(ll.Elems)+len(rl.Elems))
		elems = append(append(elems, ll.Elems...), rl.Elems...)
		return &value.List{Elems: elems}, nil
	case ast.OpUpdate:
		la, ok := l.(*value.Attrs)
		if !ok {
			return nil, diagnostics.TypeMismatch(value.Describe(l), "a set", e.Span)
		}
		ra, ok := r.(*value.Attrs)
		if !ok {
			return nil, diagnostics.TypeMismatch(value.Describe(r), "a set", e.Span)
		}
		return la.Merge(ra), nil
	}
	return nil, fmt.Errorf("unknown binary operator %q", e.Op)
}
