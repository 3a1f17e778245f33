package parser_test

import (
	"testing"

	"github.com/ConnorBaker/nix-sub005/pkg/parser"
)

// FuzzParse feeds random inputs to the parser to catch panics.
// The parser should never panic; it returns diagnostics for invalid input.
func FuzzParse(f *testing.F) {
	seeds := []string{
		`42`,
		`{ a = 1; b = "x"; }`,
		`rec { a = 1; b = a; }`,
		`{ a.b.c = 1; a.d = 2; }`,
		`let x = 1; y = x; in x + y`,
		`x: y: x`,
		`{ a, b ? 2, ... }@args: a`,
		`with { a = 1; }; a`,
		`assert true; 1`,
		`if a then b else c`,
		`a.b.c or d`,
		`a ? b`,
		`[ 1 2 (f x) ]`,
		`a // b // { c = 1; }`,
		`"x${y}z"`,
		`{ inherit a; inherit (b) c d; }`,
		`{ ${k} = 1; "s" = 2; }`,
		`-1 + !true`,
		``,
		`{`,
		`let in`,
		`{ a = 1; a = 2; }`,
		`"${"`,
		`x:`,
		`((((`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Parse panicked on input %q: %v", input, r)
				}
			}()
			parser.Parse(input, "fuzz.nix")
		}()
	})
}
