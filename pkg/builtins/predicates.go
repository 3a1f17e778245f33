package builtins

import (
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// typeOf x → "int" | "float" | "bool" | "string" | "path" | "null" | "list" | "set" | "lambda"
func primTypeOf(args []*value.Thunk) (value.Value, error) {
	v, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	return value.String(v.Type().Name()), nil
}

func isType(t value.Type) func([]*value.Thunk) (value.Value, error) {
	return func(args []*value.Thunk) (value.Value, error) {
		v, err := args[0].Force()
		if err != nil {
			return nil, err
		}
		return value.Bool(v.Type() == t), nil
	}
}
