package classify_test

import (
	"testing"

	"github.com/ConnorBaker/nix-sub005/pkg/graph/classify"
	"github.com/ConnorBaker/nix-sub005/pkg/parser"
)

// FuzzExplain checks that classification terminates without panicking on
// anything the parser accepts.
func FuzzExplain(f *testing.F) {
	for _, s := range []string{
		`let a = b; b = c; c = 1; in a`,
		`rec { a = { inherit (b) c; }; b = { c = a; }; }`,
		`x: y: x y`,
		`with { a = 1; }; let b = a; in b`,
		`{ a, ... }@s: s.a`,
		`"${"${"x"}"}"`,
		`let f = x: x; in f (f 1)`,
	} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, input string) {
		expr, diags := parser.Parse(input, "fuzz.nix")
		if len(diags) > 0 || expr == nil {
			return
		}
		classify.Explain(expr)
	})
}
