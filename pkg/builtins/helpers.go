package builtins

import (
	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

var noSpan = ast.Span{}

func forceAs[T value.Value](t *value.Thunk, want string) (T, error) {
	var zero T
	v, err := t.Force()
	if err != nil {
		return zero, err
	}
	x, ok := v.(T)
	if !ok {
		return zero, diagnostics.TypeMismatch(value.Describe(v), want, noSpan)
	}
	return x, nil
}

func forceList(t *value.Thunk) (*value.List, error)   { return forceAs[*value.List](t, "a list") }
func forceAttrs(t *value.Thunk) (*value.Attrs, error) { return forceAs[*value.Attrs](t, "a set") }
func forceString(t *value.Thunk) (value.String, error) {
	return forceAs[value.String](t, "a string")
}
func forceInt(t *value.Thunk) (value.Int, error) { return forceAs[value.Int](t, "an integer") }

// call applies a function value the way application does.
func call(fn value.Value, arg *value.Thunk) (value.Value, error) {
	switch f := fn.(type) {
	case *value.Lambda:
		return f.Apply(arg)
	case *value.Attrs:
		if functor, ok := f.Get("__functor"); ok {
			fv, err := functor.Force()
			if err != nil {
				return nil, err
			}
			self, err := call(fv, value.Forced(f))
			if err != nil {
				return nil, err
			}
			return call(self, arg)
		}
	}
	return nil, diagnostics.NotAFunction(value.Describe(fn), noSpan)
}

func call2(fn value.Value, a, b *value.Thunk) (value.Value, error) {
	partial, err := call(fn, a)
	if err != nil {
		return nil, err
	}
	return call(partial, b)
}
