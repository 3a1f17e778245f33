package lexer

import (
	"testing"
)

// FuzzTokenize feeds random inputs to the lexer to catch panics.
// The lexer should never panic; invalid input yields an error.
func FuzzTokenize(f *testing.F) {
	seeds := []string{
		`let in rec with assert if then else inherit or`,
		`42 3.14 1e3 0`,
		`"hello" "with\nescape" "quote\"" "a${b}c" "${"${x}"}"`,
		`+ - * / ++ // == != < <= > >= && || -> ! ? @ ...`,
		`{ } [ ] ( ) ; : , . =`,
		`./a ../b /c ~/d a/b`,
		`# comment`,
		`/* block */`,
		`let x = 1; in x`,
		`{ a.b = 1; inherit (s) c; }`,
		``,
		`"unterminated`,
		`"${`,
		`/*`,
		`~`,
		`@#$^&`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Tokenize panicked on input %q: %v", input, r)
				}
			}()
			Tokenize(input, "fuzz.nix")
		}()
	})
}
