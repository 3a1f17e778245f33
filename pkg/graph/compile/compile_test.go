package compile_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/compile"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/symbol"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/term"
	"github.com/ConnorBaker/nix-sub005/pkg/parser"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

func parse(t *testing.T, source string) ast.Expr {
	t.Helper()
	expr, diags := parser.Parse(source, "test.nix")
	require.Empty(t, diags)
	return expr
}

func mustCompile(t *testing.T, source string, env *value.Env) (*term.Graph, *term.Node) {
	t.Helper()
	g := term.New()
	ref, err := compile.Compile(g, parse(t, source), env)
	require.NoError(t, err)
	return g, g.Node(ref)
}

// slotOf returns the slot a let node gives name.
func slotOf(t *testing.T, let *term.Node, name string) int {
	t.Helper()
	for i, n := range let.Names {
		if n == name {
			return i
		}
	}
	t.Fatalf("%s has no slot %q", let.Kind, name)
	return -1
}

func assertVar(t *testing.T, n *term.Node, depth, slot int) {
	t.Helper()
	require.Equal(t, term.KVar, n.Kind, "got %s", n.Kind)
	assert.Equal(t, depth, n.Depth, "depth")
	assert.Equal(t, slot, n.Slot, "slot")
}

func TestAddressingAcrossWithFrames(t *testing.T) {
	// frames seen from the body: y, with, x
	g, root := mustCompile(t, `x: with { }; y: x`, nil)
	require.Equal(t, term.KLambda, root.Kind)
	with := g.Node(root.A)
	require.Equal(t, term.KWith, with.Kind)
	inner := g.Node(with.B)
	require.Equal(t, term.KLambda, inner.Kind)
	assertVar(t, g.Node(inner.A), 2, 0)

	g, root = mustCompile(t, `let a = 1; b = 2; in with { }; b`, nil)
	require.Equal(t, term.KLet, root.Kind)
	with = g.Node(root.A)
	assertVar(t, g.Node(with.B), 1, slotOf(t, root, "b"))
}

func TestNamesOnlyAWithCanSupply(t *testing.T) {
	g, root := mustCompile(t, `with { }; z`, nil)
	n := g.Node(root.B)
	require.Equal(t, term.KWithVar, n.Kind)
	assert.Equal(t, 0, n.Depth)

	_, root = mustCompile(t, `z`, nil)
	assert.Equal(t, term.KUndefined, root.Kind)
}

func TestPlainInheritSkipsItsOwnGroup(t *testing.T) {
	g, outer := mustCompile(t, `let x = 1; in let inherit x; in x`, nil)
	require.Equal(t, term.KLet, outer.Kind)
	inner := g.Node(outer.A)
	require.Equal(t, term.KLet, inner.Kind)
	assertVar(t, g.Node(inner.Refs[slotOf(t, inner, "x")]), 1, slotOf(t, outer, "x"))
	assertVar(t, g.Node(inner.A), 0, slotOf(t, inner, "x"))

	// with nothing outside, the name is undefined instead of a self reference
	g, let := mustCompile(t, `let inherit x; in x`, nil)
	assert.Equal(t, term.KUndefined, g.Node(let.Refs[0]).Kind)

	// a nested plain set inherits from the rec frame itself
	g, rec := mustCompile(t, `rec { x = 1; y = { inherit x; }; }`, nil)
	require.Equal(t, term.KLet, rec.Kind)
	y := g.Node(rec.Refs[slotOf(t, rec, "y")])
	require.Equal(t, term.KAttrLayer, y.Kind)
	var entry term.Ref = term.NoRef
	y.Layer.Each(func(_ symbol.Symbol, r term.Ref) { entry = r })
	require.NotEqual(t, term.NoRef, entry)
	assertVar(t, g.Node(entry), 0, slotOf(t, rec, "x"))
}

func TestInheritFromCompilesToSelect(t *testing.T) {
	g, let := mustCompile(t, `let s = { p = 1; }; in { inherit (s) p; }`, nil)
	set := g.Node(let.A)
	require.Equal(t, term.KAttrLayer, set.Kind)
	var sel *term.Node
	set.Layer.Each(func(_ symbol.Symbol, r term.Ref) { sel = g.Node(r) })
	require.NotNil(t, sel)
	require.Equal(t, term.KSelect, sel.Kind)
	assert.Equal(t, "p", g.Symbols.Name(sel.Path[0]))
	assertVar(t, g.Node(sel.A), 1, slotOf(t, let, "s"))
	assert.Equal(t, term.NoRef, sel.C)
}

func TestHostVariables(t *testing.T) {
	env := value.NewEnv(nil)
	h := value.Forced(value.Int(1))
	env.Set("h", h)

	_, n := mustCompile(t, `h`, env)
	require.Equal(t, term.KHostVar, n.Kind)
	assert.Same(t, h, n.Host)

	// a binding of the expression shadows the host
	g, lam := mustCompile(t, `h: h`, env)
	assertVar(t, g.Node(lam.A), 0, 0)

	// an outer host `with` turns unknown names into dynamic lookups
	wenv := value.NewWithEnv(env, value.Forced(value.EmptyAttrs()))
	_, n = mustCompile(t, `unknown`, wenv)
	assert.Equal(t, term.KWithVar, n.Kind)
}

func TestConstants(t *testing.T) {
	_, n := mustCompile(t, `true`, nil)
	require.Equal(t, term.KBool, n.Kind)
	assert.True(t, n.Bool)

	g, lam := mustCompile(t, `true: true`, nil)
	assertVar(t, g.Node(lam.A), 0, 0)

	_, n = mustCompile(t, `"a${"b${"c"}"}d"`, nil)
	require.Equal(t, term.KString, n.Kind)
	assert.Equal(t, "abcd", n.Str)

	g, n = mustCompile(t, `-5`, nil)
	require.Equal(t, term.KBinOp, n.Kind)
	assert.Equal(t, term.OpSub, n.Op)
	assert.Equal(t, int64(0), g.Node(n.A).Int)
}

func TestUpdateWithLiteralStacksALayer(t *testing.T) {
	g, n := mustCompile(t, `{ a = 1; } // { b = 2; }`, nil)
	require.Equal(t, term.KAttrLayer, n.Kind)
	assert.Equal(t, term.KAttrLayer, g.Node(n.A).Kind)
	assert.Equal(t, 1, n.Layer.Len())

	g, lam := mustCompile(t, `x: x // x`, nil)
	body := g.Node(lam.A)
	require.Equal(t, term.KBinOp, body.Kind)
	assert.Equal(t, term.OpUpdate, body.Op)
}

func TestUnsupported(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"formals", `{ a }: a`, "formal argument pattern"},
		{"operator", `1 * 2`, "operator '*'"},
		{"interpolation", `x: "${x}"`, "string interpolation"},
		{"dynamic select", `x: { }."${x}"`, "dynamic attribute name"},
		{"multi-segment test", `{ } ? a.b`, "attribute test path"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compile.Compile(term.New(), parse(t, tc.src), nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, compile.ErrUnsupported))
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := compile.Compile(term.New(), nil, nil)
	assert.ErrorIs(t, err, compile.ErrUnsupported)
}

func TestDynamicInherit(t *testing.T) {
	span := ast.Span{File: "gen.nix", StartLine: 3, StartCol: 7}
	dynamic := &ast.Inherit{
		Span:  span,
		Names: []ast.AttrName{{Span: span, Dynamic: &ast.Var{Span: span, Name: "n"}}},
	}
	for name, expr := range map[string]ast.Expr{
		"set": &ast.AttrSet{Bindings: []ast.Binding{dynamic}},
		"let": &ast.Let{Bindings: []ast.Binding{dynamic}, Body: &ast.IntLiteral{Value: 1}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := compile.Compile(term.New(), expr, nil)
			require.ErrorIs(t, err, compile.ErrUnsupported)
			assert.Contains(t, err.Error(), "dynamic inherit at gen.nix:3:7")
		})
	}
}
