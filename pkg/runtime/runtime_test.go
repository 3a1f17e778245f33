package runtime

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/formatter"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

func run(t *testing.T, rt *Runtime, source string) (*Result, error) {
	t.Helper()
	return rt.Run(context.Background(), source, "test.nix")
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":          ModeAuto,
		"auto":      ModeAuto,
		"graph":     ModeGraph,
		"reference": ModeReference,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("fast")
	assert.ErrorContains(t, err, "unknown engine mode")
}

func TestEngineSelection(t *testing.T) {
	tests := []struct {
		name   string
		mode   Mode
		src    string
		engine string
		want   string
	}{
		{"auto admitted", ModeAuto, `{ a = 1; }.a`, EngineGraph, `1`},
		{"auto declined", ModeAuto, `builtins.length [ 1 2 ]`, EngineReference, `2`},
		{"auto closure", ModeAuto, `x: x`, EngineReference, `<LAMBDA>`},
		{"reference only", ModeReference, `{ a = 1; }.a`, EngineReference, `1`},
		{"graph only", ModeGraph, `let f = x: x - 1; in f 3`, EngineGraph, `2`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := run(t, New(WithEngineMode(tc.mode)), tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.engine, res.Engine)
			got, err := formatter.Nix(res.Value)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGraphModeDeclines(t *testing.T) {
	_, err := run(t, New(WithEngineMode(ModeGraph)), `2 * 3`)
	assert.ErrorIs(t, err, ErrDeclined)
}

func TestSemanticErrorFromGraphIsNotRetried(t *testing.T) {
	_, err := run(t, New(), `{ a = 1; }.b`)
	var ee *diagnostics.EvalError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, diagnostics.EMissingAttr, ee.Code)
}

func TestParseErrors(t *testing.T) {
	_, err := run(t, New(), `{ a = ; }`)
	var de *DiagnosticError
	require.ErrorAs(t, err, &de)
	require.NotEmpty(t, de.Diagnostics)
	assert.Contains(t, err.Error(), string(de.Diagnostics[0].Code))
}

func TestMaxExprDepth(t *testing.T) {
	src := strings.Repeat("[ ", 40) + "1" + strings.Repeat(" ]", 40)

	res, err := run(t, New(WithMaxExprDepth(10)), src)
	require.NoError(t, err)
	assert.Equal(t, EngineReference, res.Engine)

	res, err = run(t, New(), src)
	require.NoError(t, err)
	assert.Equal(t, EngineGraph, res.Engine)

	_, err = run(t, New(WithEngineMode(ModeGraph), WithMaxExprDepth(10)), src)
	assert.ErrorIs(t, err, ErrDeclined)
}

func TestStrict(t *testing.T) {
	src := `{ a = 1; b = { }.missing; }`

	res, err := run(t, New(), src)
	require.NoError(t, err)
	attrs, ok := res.Value.(*value.Attrs)
	require.True(t, ok)
	assert.Equal(t, 2, attrs.Len())

	_, err = run(t, New(WithStrict(true)), src)
	var ee *diagnostics.EvalError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, diagnostics.EMissingAttr, ee.Code)
}

func TestCheck(t *testing.T) {
	rt := New()

	diags, err := rt.Check(`let a = 1; in a + 1`, "ok.nix")
	assert.Empty(t, diags)
	assert.NoError(t, err)

	diags, err = rt.Check(`2 * 3`, "mul.nix")
	assert.Empty(t, diags)
	assert.ErrorContains(t, err, "operator")

	diags, err = rt.Check(`{ a = ; }`, "bad.nix")
	assert.NotEmpty(t, diags)
	assert.NoError(t, err)
}

func TestFormat(t *testing.T) {
	rt := New()
	out, err := rt.Format(`{a=1;}`, "fmt.nix")
	require.NoError(t, err)
	assert.Contains(t, out, "a = 1;")

	_, err = rt.Format(`{ a = ; }`, "fmt.nix")
	var de *DiagnosticError
	assert.ErrorAs(t, err, &de)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(WithEngineMode(ModeReference)).Run(ctx, `let f = n: if n == 0 then 0 else f (n - 1); in f 100`, "loop.nix")
	assert.Error(t, err)
}
