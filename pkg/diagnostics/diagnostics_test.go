package diagnostics_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
)

func TestMakeDiag(t *testing.T) {
	span := &ast.Span{File: "test.nix", StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 5}
	d := diagnostics.MakeDiag(diagnostics.EParse, "unexpected token", span, "check syntax")

	assert.Equal(t, diagnostics.EParse, d.Code)
	assert.Equal(t, "unexpected token", d.Message)
}

func TestFormatDiagnosticPretty(t *testing.T) {
	span := &ast.Span{File: "test.nix", StartLine: 3, StartCol: 5, EndLine: 3, EndCol: 10}
	d := diagnostics.MakeDiag(diagnostics.EUndefinedVar, "undefined variable 'x'", span, "did you mean 'y'?")

	out := diagnostics.FormatDiagnostic(d, true)
	assert.Contains(t, out, "error[E_UNDEFINED_VAR]")
	assert.Contains(t, out, "test.nix:3:5")
	assert.Contains(t, out, "hint:")
}

func TestFormatDiagnosticJSON(t *testing.T) {
	d := diagnostics.MakeDiag(diagnostics.ELex, "bad token", nil, "")
	out := diagnostics.FormatDiagnostic(d, false)
	assert.Contains(t, out, `"code":"E_LEX"`)
}

func TestEvalErrorConstructors(t *testing.T) {
	span := ast.Span{File: "a.nix", StartLine: 2, StartCol: 3, EndLine: 2, EndCol: 9}

	tests := []struct {
		err  *diagnostics.EvalError
		code string
		msg  string
	}{
		{diagnostics.MissingAttr("c", span), diagnostics.EMissingAttr, "attribute 'c' missing"},
		{diagnostics.UndefinedVar("x", span), diagnostics.EUndefinedVar, "undefined variable 'x'"},
		{diagnostics.TypeMismatch("an integer", "a set", span), diagnostics.EType, "value is an integer while a set was expected"},
		{diagnostics.NotAFunction("a list", span), diagnostics.ENotFunction, "attempt to call something which is not a function but a list"},
		{diagnostics.Overflow("adding", 1, 2, span), diagnostics.EOverflow, "integer overflow in adding 1 and 2"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.msg, tt.err.Message)
			require.NotNil(t, tt.err.Span)
			assert.Contains(t, tt.err.Error(), "a.nix:2:3")
		})
	}
}

func TestEvalErrorWithoutSpan(t *testing.T) {
	err := diagnostics.InfiniteRecursion()
	assert.Nil(t, err.Span)
	assert.Equal(t, "infinite recursion encountered", err.Error())

	var target *diagnostics.EvalError
	wrapped := errors.Join(errors.New("context"), err)
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, diagnostics.EInfiniteRecursion, target.Diagnostic().Code)
}
