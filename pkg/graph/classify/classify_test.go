package classify_test

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/classify"
	"github.com/ConnorBaker/nix-sub005/pkg/parser"
)

func mustParse(t *testing.T, source string) ast.Expr {
	t.Helper()
	expr, diags := parser.Parse(source, "test.nix")
	require.Empty(t, diags)
	return expr
}

func TestAdmitted(t *testing.T) {
	sources := []string{
		`42`,
		`1 + 2 - 3`,
		`"plain"`,
		`"a${"b${"c"}"}"`,
		`./some/path`,
		`true && !false || false -> true`,
		`1 == 1`,
		`[ 1 2 ] != [ ]`,
		`[ 1 ] ++ [ 2 ]`,
		`{ a = 1; } // { b = 2; }`,
		`(x: x + 1) 2`,
		`x: y: x`,
		`let a = 1; b = a + 1; in b`,
		`rec { a = 1; b = a; }`,
		`rec { a = { inherit b; }; b = 1; }`,
		`let x = 1; in { inherit x; }`,
		`let s = { a = 1; }; in { inherit (s) a; }`,
		`let a = { b = 1; }; in a.b or 2`,
		`{ a = 1; } ? a`,
		`assert true; if true then 1 else 2`,
		`with { a = 1; }; a`,
		`-5`,
		`let builtins = 1; in builtins`,
		`map: map`,
		`let x = 1; in let y = x; in y`,
		`undefinedName`,
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			expr := mustParse(t, src)
			assert.NoError(t, classify.Explain(expr))
			assert.True(t, classify.CanEvaluate(expr))
		})
	}
}

func TestRejected(t *testing.T) {
	cases := []struct {
		src    string
		reason string
	}{
		{`2 * 3`, "operator '*'"},
		{`4 / 2`, "operator '/'"},
		{`1 < 2`, "operator '<'"},
		{`1 <= 2`, "operator '<='"},
		{`1 > 2`, "operator '>'"},
		{`1 >= 2`, "operator '>='"},
		{`1.5 + 1`, "float arithmetic"},
		{`1 - 2.5`, "float arithmetic"},
		{`-1.5`, "float arithmetic"},
		{`map`, "reference to builtin 'map'"},
		{`builtins.length`, "reference to builtin 'builtins'"},
		{`null`, "reference to builtin 'null'"},
		{`__add`, "reference to builtin '__add'"},
		{`{ inherit toString; }`, "reference to builtin 'toString'"},
		{`{ a, b }: a`, "function with a formal argument pattern"},
		{`args@{ a }: a`, "function with a formal argument pattern"},
		{`let k = "a"; in { ${k} = 1; }`, "dynamic attribute name"},
		{`let k = "a"; s = {}; in s.${k}`, "dynamic attribute name"},
		{`{ a = { b = 1; }; } ? a.b`, "multi-segment '?' path"},
		{`let x = 1; in "${x}"`, "string interpolation of a non-constant expression"},
		{`let x = x; in x`, "cyclic let binding 'x'"},
		{`let a = b; b = a; in a`, "cyclic let binding 'a'"},
		{`let f = n: f n; in 1`, "cyclic let binding 'f'"},
		{`rec { a = b; b = a; }`, "cyclic rec binding 'a'"},
		{`rec { a = { inherit (b) c; }; b = a; }`, "cyclic rec binding 'a'"},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			err := classify.Explain(mustParse(t, tc.src))
			require.Error(t, err)
			assert.False(t, classify.CanEvaluate(mustParse(t, tc.src)))

			var merr *multierror.Error
			require.True(t, errors.As(err, &merr))
			var reasons []string
			for _, e := range merr.Errors {
				var rej *classify.Rejection
				require.True(t, errors.As(e, &rej))
				reasons = append(reasons, rej.Reason)
			}
			assert.Contains(t, reasons, tc.reason)
		})
	}
}

// Constructs in branches evaluation never reaches still reject.
func TestWholeTreeConservative(t *testing.T) {
	for _, src := range []string{
		`if true then 1 else 2 * 3`,
		`let unused = map; in 1`,
		`{ a = 1; b = x: x / 2; }.a`,
		`true || (1 < 2)`,
	} {
		assert.Falsef(t, classify.CanEvaluate(mustParse(t, src)), "%s", src)
	}
}

func TestWithDoesNotShadowBuiltins(t *testing.T) {
	assert.False(t, classify.CanEvaluate(mustParse(t, `with { map = 1; }; map`)))
}

func TestRejectionsCarrySpans(t *testing.T) {
	err := classify.Explain(mustParse(t, "1 +\n  2 * 3"))
	require.Error(t, err)
	var rej *classify.Rejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, 2, rej.Span.StartLine)
	assert.Contains(t, rej.Error(), "test.nix:2:")
}

func TestEveryRejectionIsReported(t *testing.T) {
	err := classify.Explain(mustParse(t, `[ (1 * 2) (3 / 4) map ]`))
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 3)
}

func TestNilExpression(t *testing.T) {
	assert.False(t, classify.CanEvaluate(nil))
	assert.Error(t, classify.Explain(nil))
}
