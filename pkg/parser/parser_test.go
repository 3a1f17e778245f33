package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/parser"
)

// helper: parse source and assert no diagnostics
func mustParse(t *testing.T, source string) ast.Expr {
	t.Helper()
	expr, diags := parser.Parse(source, "test.nix")
	require.Empty(t, diags, "unexpected diagnostics")
	require.NotNil(t, expr)
	return expr
}

// helper: parse source and return the first diagnostic
func mustFail(t *testing.T, source string) diagnostics.Diagnostic {
	t.Helper()
	expr, diags := parser.Parse(source, "test.nix")
	require.Nil(t, expr)
	require.NotEmpty(t, diags, "expected parse to fail with diagnostics")
	return diags[0]
}

func as[T ast.Expr](t *testing.T, e ast.Expr) T {
	t.Helper()
	v, ok := e.(T)
	require.Truef(t, ok, "expected %T, got %T", *new(T), e)
	return v
}

func binding(t *testing.T, set *ast.AttrSet, name string) *ast.AttrBinding {
	t.Helper()
	for _, b := range set.Bindings {
		if ab, ok := b.(*ast.AttrBinding); ok && ab.Path[0].Name == name {
			return ab
		}
	}
	t.Fatalf("no binding %q", name)
	return nil
}

// ---- Literals ----

func TestLiterals(t *testing.T) {
	assert.Equal(t, int64(42), as[*ast.IntLiteral](t, mustParse(t, "42")).Value)
	assert.Equal(t, 2.5, as[*ast.FloatLiteral](t, mustParse(t, "2.5")).Value)
	assert.Equal(t, "./a/b", as[*ast.PathLiteral](t, mustParse(t, "./a/b")).Value)
	assert.Equal(t, "true", as[*ast.Var](t, mustParse(t, "true")).Name)

	s := as[*ast.StrLiteral](t, mustParse(t, `"hello"`))
	got, ok := s.Constant()
	assert.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestIntegerOutOfRange(t *testing.T) {
	d := mustFail(t, "99999999999999999999")
	assert.Equal(t, diagnostics.EParse, d.Code)
	assert.Contains(t, d.Message, "invalid integer")
}

func TestStringInterpolation(t *testing.T) {
	s := as[*ast.StrLiteral](t, mustParse(t, `"a${x}b${"c"}"`))
	require.Len(t, s.Parts, 4)
	assert.Equal(t, "a", s.Parts[0].Text)
	assert.Equal(t, "x", as[*ast.Var](t, s.Parts[1].Expr).Name)
	assert.Equal(t, "b", s.Parts[2].Text)
	inner := as[*ast.StrLiteral](t, s.Parts[3].Expr)
	c, ok := inner.Constant()
	assert.True(t, ok)
	assert.Equal(t, "c", c)
}

// ---- Functions ----

func TestLambda(t *testing.T) {
	lam := as[*ast.Lambda](t, mustParse(t, "x: y: x"))
	assert.Equal(t, "x", lam.Param)
	assert.Nil(t, lam.Formals)
	inner := as[*ast.Lambda](t, lam.Body)
	assert.Equal(t, "y", inner.Param)
}

func TestLambdaFormals(t *testing.T) {
	tests := []struct {
		source   string
		param    string
		names    []string
		ellipsis bool
	}{
		{"{ a, b }: a", "", []string{"a", "b"}, false},
		{"{ a, b ? 1, ... }: a", "", []string{"a", "b"}, true},
		{"args@{ a }: a", "args", []string{"a"}, false},
		{"{ ... }@args: args", "args", nil, true},
		{"{}: 1", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			lam := as[*ast.Lambda](t, mustParse(t, tt.source))
			require.NotNil(t, lam.Formals)
			assert.Equal(t, tt.param, lam.Param)
			var names []string
			for _, f := range lam.Formals.Entries {
				names = append(names, f.Name)
			}
			assert.Equal(t, tt.names, names)
			assert.Equal(t, tt.ellipsis, lam.Formals.Ellipsis)
		})
	}
}

func TestDuplicateFormal(t *testing.T) {
	d := mustFail(t, "{ a, a }: a")
	assert.Contains(t, d.Message, "duplicate formal function argument 'a'")
	d = mustFail(t, "a@{ a }: a")
	assert.Contains(t, d.Message, "duplicate formal function argument 'a'")
}

func TestApplication(t *testing.T) {
	app := as[*ast.Apply](t, mustParse(t, "f x y"))
	assert.Equal(t, "y", as[*ast.Var](t, app.Arg).Name)
	inner := as[*ast.Apply](t, app.Fn)
	assert.Equal(t, "f", as[*ast.Var](t, inner.Fn).Name)
	assert.Equal(t, "x", as[*ast.Var](t, inner.Arg).Name)
}

func TestApplicationBindsTighterThanSelectArguments(t *testing.T) {
	app := as[*ast.Apply](t, mustParse(t, "f a.b { c = 1; }"))
	as[*ast.AttrSet](t, app.Arg)
	inner := as[*ast.Apply](t, app.Fn)
	sel := as[*ast.Select](t, inner.Arg)
	assert.Equal(t, "b", sel.Path[0].Name)
}

// ---- Operators ----

func TestPrecedence(t *testing.T) {
	tests := []struct {
		source string
		op     ast.BinaryOp
	}{
		{"a -> b || c", ast.OpImpl},
		{"a || b && c", ast.OpOr},
		{"a && b == c", ast.OpAnd},
		{"a == b < c", ast.OpEqEq},
		{"a < b // c", ast.OpLt},
		{"a // b + c", ast.OpUpdate},
		{"a + b * c", ast.OpAdd},
		{"a * b ++ c", ast.OpMul},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			bin := as[*ast.BinaryExpr](t, mustParse(t, tt.source))
			assert.Equal(t, tt.op, bin.Op)
		})
	}
}

func TestRightAssociativity(t *testing.T) {
	for _, src := range []string{"a // b // c", "a ++ b ++ c", "a -> b -> c"} {
		bin := as[*ast.BinaryExpr](t, mustParse(t, src))
		as[*ast.Var](t, bin.Left)
		as[*ast.BinaryExpr](t, bin.Right)
	}
}

func TestLeftAssociativity(t *testing.T) {
	bin := as[*ast.BinaryExpr](t, mustParse(t, "a - b - c"))
	assert.Equal(t, ast.OpSub, bin.Op)
	as[*ast.BinaryExpr](t, bin.Left)
	assert.Equal(t, "c", as[*ast.Var](t, bin.Right).Name)
}

func TestUnary(t *testing.T) {
	neg := as[*ast.UnaryExpr](t, mustParse(t, "-f x"))
	assert.Equal(t, ast.OpNeg, neg.Op)
	as[*ast.Apply](t, neg.Operand)

	not := as[*ast.UnaryExpr](t, mustParse(t, "!a + b"))
	assert.Equal(t, ast.OpNot, not.Op)
	as[*ast.BinaryExpr](t, not.Operand)

	upd := as[*ast.BinaryExpr](t, mustParse(t, "!a // b"))
	assert.Equal(t, ast.OpUpdate, upd.Op)
	as[*ast.UnaryExpr](t, upd.Left)
}

// ---- Selection ----

func TestSelect(t *testing.T) {
	sel := as[*ast.Select](t, mustParse(t, "a.b.c"))
	require.Len(t, sel.Path, 2)
	assert.Equal(t, "b", sel.Path[0].Name)
	assert.Equal(t, "c", sel.Path[1].Name)
	assert.Nil(t, sel.Default)
}

func TestSelectDefault(t *testing.T) {
	sel := as[*ast.Select](t, mustParse(t, "{}.a or 42"))
	as[*ast.AttrSet](t, sel.Base)
	assert.Equal(t, int64(42), as[*ast.IntLiteral](t, sel.Default).Value)
}

func TestSelectDynamic(t *testing.T) {
	sel := as[*ast.Select](t, mustParse(t, `a.${k}."x${y}".z`))
	require.Len(t, sel.Path, 3)
	assert.False(t, sel.Path[0].Static())
	assert.False(t, sel.Path[1].Static())
	assert.True(t, sel.Path[2].Static())
}

func TestHasAttr(t *testing.T) {
	h := as[*ast.HasAttr](t, mustParse(t, "a ? b.c"))
	require.Len(t, h.Path, 2)

	// `?` binds tighter than `&&`.
	and := as[*ast.BinaryExpr](t, mustParse(t, "a ? b && c"))
	as[*ast.HasAttr](t, and.Left)
}

// ---- Attribute sets ----

func TestAttrSet(t *testing.T) {
	set := as[*ast.AttrSet](t, mustParse(t, `{ a = 1; "b" = 2; }`))
	assert.False(t, set.Rec)
	assert.Equal(t, []string{"a", "b"}, ast.BindingNames(set.Bindings))
}

func TestRecAttrSet(t *testing.T) {
	set := as[*ast.AttrSet](t, mustParse(t, `rec { a = 1; b = a; }`))
	assert.True(t, set.Rec)
}

func TestNestedPathsMerge(t *testing.T) {
	set := as[*ast.AttrSet](t, mustParse(t, `{ a.b = 1; a.c.d = 2; x = 3; }`))
	assert.Equal(t, []string{"a", "x"}, ast.BindingNames(set.Bindings))
	a := as[*ast.AttrSet](t, binding(t, set, "a").Value)
	assert.Equal(t, []string{"b", "c"}, ast.BindingNames(a.Bindings))
	c := as[*ast.AttrSet](t, binding(t, a, "c").Value)
	assert.Equal(t, []string{"d"}, ast.BindingNames(c.Bindings))
}

func TestNestedPathMergesIntoLiteral(t *testing.T) {
	set := as[*ast.AttrSet](t, mustParse(t, `{ a = { b = 1; }; a.c = 2; }`))
	a := as[*ast.AttrSet](t, binding(t, set, "a").Value)
	assert.Equal(t, []string{"b", "c"}, ast.BindingNames(a.Bindings))
}

func TestDuplicateAttr(t *testing.T) {
	tests := []struct {
		source string
		msg    string
	}{
		{`{ a = 1; a = 2; }`, "attribute 'a' already defined"},
		{`{ a.b = 1; a.b = 2; }`, "attribute 'a.b' already defined"},
		{`{ a = 1; a.b = 2; }`, "attribute 'a' already defined"},
		{`{ inherit a; a = 1; }`, "attribute 'a' already defined"},
		{`{ a = 1; inherit a; }`, "attribute 'a' already defined"},
		{`let a = 1; a = 2; in a`, "attribute 'a' already defined"},
		{`{ a = rec { b = 1; }; a.c = 2; }`, "attribute 'a' already defined"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			d := mustFail(t, tt.source)
			assert.Equal(t, diagnostics.EDupAttr, d.Code)
			assert.Equal(t, tt.msg, d.Message)
		})
	}
}

func TestDynamicBinding(t *testing.T) {
	set := as[*ast.AttrSet](t, mustParse(t, `{ ${k} = 1; "${j}".x = 2; }`))
	require.Len(t, set.Bindings, 2)
	first := set.Bindings[0].(*ast.AttrBinding)
	assert.False(t, first.Path[0].Static())
	second := set.Bindings[1].(*ast.AttrBinding)
	require.Len(t, second.Path, 1)
	nested := as[*ast.AttrSet](t, second.Value)
	assert.Equal(t, []string{"x"}, ast.BindingNames(nested.Bindings))
}

func TestInherit(t *testing.T) {
	set := as[*ast.AttrSet](t, mustParse(t, `{ inherit a b; inherit (s) c; }`))
	require.Len(t, set.Bindings, 2)
	plain := set.Bindings[0].(*ast.Inherit)
	assert.Nil(t, plain.From)
	assert.Len(t, plain.Names, 2)
	from := set.Bindings[1].(*ast.Inherit)
	assert.Equal(t, "s", as[*ast.Var](t, from.From).Name)
	assert.Equal(t, []string{"a", "b", "c"}, ast.BindingNames(set.Bindings))
}

func TestDynamicInherit(t *testing.T) {
	d := mustFail(t, `{ inherit ${a}; }`)
	assert.Contains(t, d.Message, "dynamic attributes not allowed in inherit")
}

// ---- Scoping and control ----

func TestLet(t *testing.T) {
	let := as[*ast.Let](t, mustParse(t, `let x = 1; y = x; in y`))
	assert.Equal(t, []string{"x", "y"}, ast.BindingNames(let.Bindings))
	assert.Equal(t, "y", as[*ast.Var](t, let.Body).Name)
}

func TestLetDynamicRejected(t *testing.T) {
	d := mustFail(t, `let ${x} = 1; in 2`)
	assert.Contains(t, d.Message, "dynamic attributes not allowed in let")
}

func TestWithAssertIf(t *testing.T) {
	w := as[*ast.With](t, mustParse(t, `with s; x`))
	assert.Equal(t, "s", as[*ast.Var](t, w.Scope).Name)

	a := as[*ast.Assert](t, mustParse(t, `assert c; x`))
	assert.Equal(t, "c", as[*ast.Var](t, a.Cond).Name)

	i := as[*ast.IfExpr](t, mustParse(t, `if c then 1 else 2`))
	assert.Equal(t, int64(2), as[*ast.IntLiteral](t, i.Else).Value)
}

func TestList(t *testing.T) {
	list := as[*ast.ListExpr](t, mustParse(t, `[ 1 a.b (f x) { } ]`))
	require.Len(t, list.Elements, 4)
	as[*ast.Select](t, list.Elements[1])
	as[*ast.Apply](t, list.Elements[2])
}

// ---- Errors and spans ----

func TestParseErrors(t *testing.T) {
	tests := []struct {
		source string
		msg    string
	}{
		{"", "unexpected end of file"},
		{"1 2 )", "unexpected ')', expected end of file"},
		{"{ a = 1 }", "expected ';', got '}'"},
		{"if a then b", "expected 'else', got end of file"},
		{"[ 1 2", "unterminated list, expected ']'"},
		{`"${}"`, "empty interpolation"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			d := mustFail(t, tt.source)
			assert.Equal(t, diagnostics.EParse, d.Code)
			assert.Equal(t, tt.msg, d.Message)
		})
	}
}

func TestLexErrorSurfaces(t *testing.T) {
	d := mustFail(t, `"abc`)
	assert.Equal(t, diagnostics.ELex, d.Code)
}

func TestSpans(t *testing.T) {
	let := as[*ast.Let](t, mustParse(t, "let\n  x = 1;\nin\n  x"))
	span := let.NodeSpan()
	assert.Equal(t, "test.nix", span.File)
	assert.Equal(t, 1, span.StartLine)
	assert.Equal(t, 4, span.EndLine)
	assert.Equal(t, 4, let.Body.NodeSpan().StartLine)
}
