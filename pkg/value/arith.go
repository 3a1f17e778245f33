package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
)

func numeric(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// AddInt adds two integers, failing on overflow.
func AddInt(a, b int64, span ast.Span) (Value, error) {
	s := a + b
	if (s > a) != (b > 0) {
		return nil, diagnostics.Overflow("addition", a, b, span)
	}
	return Int(s), nil
}

// SubInt subtracts two integers, failing on overflow.
func SubInt(a, b int64, span ast.Span) (Value, error) {
	d := a - b
	if (d < a) != (b > 0) {
		return nil, diagnostics.Overflow("subtraction", a, b, span)
	}
	return Int(d), nil
}

// Add implements `+` over numbers, strings and paths.
func Add(a, b Value, span ast.Span) (Value, error) {
	if x, ok := a.(Int); ok {
		if y, ok := b.(Int); ok {
			return AddInt(int64(x), int64(y), span)
		}
	}
	if x, ok := numeric(a); ok {
		if y, ok := numeric(b); ok {
			return Float(x + y), nil
		}
		return nil, diagnostics.Errorf(diagnostics.EType, span, "cannot add %s to %s", Describe(b), Describe(a))
	}
	switch x := a.(type) {
	case String:
		s, err := CoerceToString(b, span)
		if err != nil {
			return nil, err
		}
		return String(string(x) + s), nil
	case Path:
		s, err := CoerceToString(b, span)
		if err != nil {
			return nil, err
		}
		return Path(string(x) + s), nil
	}
	return nil, diagnostics.Errorf(diagnostics.EType, span, "cannot add %s to %s", Describe(b), Describe(a))
}

func requireNumbers(a, b Value, span ast.Span) (float64, float64, error) {
	x, ok := numeric(a)
	if !ok {
		return 0, 0, diagnostics.TypeMismatch(Describe(a), "an integer", span)
	}
	y, ok := numeric(b)
	if !ok {
		return 0, 0, diagnostics.TypeMismatch(Describe(b), "an integer", span)
	}
	return x, y, nil
}

// Sub implements `-`.
func Sub(a, b Value, span ast.Span) (Value, error) {
	if x, ok := a.(Int); ok {
		if y, ok := b.(Int); ok {
			return SubInt(int64(x), int64(y), span)
		}
	}
	x, y, err := requireNumbers(a, b, span)
	if err != nil {
		return nil, err
	}
	return Float(x - y), nil
}

// Mul implements `*`.
func Mul(a, b Value, span ast.Span) (Value, error) {
	if x, ok := a.(Int); ok {
		if y, ok := b.(Int); ok {
			p := int64(x) * int64(y)
			if x != 0 && (p/int64(x) != int64(y) || (x == -1 && y == math.MinInt64)) {
				return nil, diagnostics.Overflow("multiplication", int64(x), int64(y), span)
			}
			return Int(p), nil
		}
	}
	x, y, err := requireNumbers(a, b, span)
	if err != nil {
		return nil, err
	}
	return Float(x * y), nil
}

// Div implements `/`. Integer division truncates.
func Div(a, b Value, span ast.Span) (Value, error) {
	x, y, err := requireNumbers(a, b, span)
	if err != nil {
		return nil, err
	}
	if y == 0 {
		return nil, diagnostics.Errorf(diagnostics.EDivZero, span, "division by zero")
	}
	if xi, ok := a.(Int); ok {
		if yi, ok := b.(Int); ok {
			if xi == math.MinInt64 && yi == -1 {
				return nil, diagnostics.Overflow("division", int64(xi), int64(yi), span)
			}
			return Int(xi / yi), nil
		}
	}
	return Float(x / y), nil
}

// Compare orders two values for `<` and friends: numbers, strings, paths
// and, lexicographically, lists.
func Compare(a, b Value, span ast.Span) (int, error) {
	if x, ok := numeric(a); ok {
		if y, ok := numeric(b); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	}
	switch x := a.(type) {
	case String:
		if y, ok := b.(String); ok {
			return strings.Compare(string(x), string(y)), nil
		}
	case Path:
		if y, ok := b.(Path); ok {
			return strings.Compare(string(x), string(y)), nil
		}
	case *List:
		if y, ok := b.(*List); ok {
			for i := 0; i < len(x.Elems) && i < len(y.Elems); i++ {
				xv, err := x.Elems[i].Force()
				if err != nil {
					return 0, err
				}
				yv, err := y.Elems[i].Force()
				if err != nil {
					return 0, err
				}
				c, err := Compare(xv, yv, span)
				if err != nil || c != 0 {
					return c, err
				}
			}
			return len(x.Elems) - len(y.Elems), nil
		}
	}
	return 0, diagnostics.Errorf(diagnostics.EType, span, "cannot compare %s with %s", Describe(a), Describe(b))
}

// CoerceToString converts a value for string interpolation. Only strings,
// paths and sets with an outPath coerce.
func CoerceToString(v Value, span ast.Span) (string, error) {
	switch x := v.(type) {
	case String:
		return string(x), nil
	case Path:
		return string(x), nil
	case *Attrs:
		if out, ok := x.Get("outPath"); ok {
			ov, err := out.Force()
			if err != nil {
				return "", err
			}
			return CoerceToString(ov, span)
		}
	}
	return "", diagnostics.Errorf(diagnostics.ECoerce, span, "cannot coerce %s to a string", Describe(v))
}

// ToString implements builtins.toString, which also accepts numbers,
// Booleans, null and lists.
func ToString(v Value, span ast.Span) (string, error) {
	switch x := v.(type) {
	case Int:
		return strconv.FormatInt(int64(x), 10), nil
	case Float:
		return fmt.Sprintf("%f", float64(x)), nil
	case Bool:
		if x {
			return "1", nil
		}
		return "", nil
	case Null:
		return "", nil
	case *List:
		parts := make([]string, 0, len(x.Elems))
		for _, el := range x.Elems {
			ev, err := el.Force()
			if err != nil {
				return "", err
			}
			s, err := ToString(ev, span)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " "), nil
	}
	return CoerceToString(v, span)
}
