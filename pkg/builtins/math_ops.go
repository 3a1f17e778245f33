package builtins

import (
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

func forcePair(args []*value.Thunk) (value.Value, value.Value, error) {
	a, err := args[0].Force()
	if err != nil {
		return nil, nil, err
	}
	b, err := args[1].Force()
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// add a b
func primAdd(args []*value.Thunk) (value.Value, error) {
	a, b, err := forcePair(args)
	if err != nil {
		return nil, err
	}
	return value.Add(a, b, noSpan)
}

// sub a b
func primSub(args []*value.Thunk) (value.Value, error) {
	a, b, err := forcePair(args)
	if err != nil {
		return nil, err
	}
	return value.Sub(a, b, noSpan)
}

// mul a b
func primMul(args []*value.Thunk) (value.Value, error) {
	a, b, err := forcePair(args)
	if err != nil {
		return nil, err
	}
	return value.Mul(a, b, noSpan)
}

// div a b
func primDiv(args []*value.Thunk) (value.Value, error) {
	a, b, err := forcePair(args)
	if err != nil {
		return nil, err
	}
	return value.Div(a, b, noSpan)
}

// lessThan a b
func primLessThan(args []*value.Thunk) (value.Value, error) {
	a, b, err := forcePair(args)
	if err != nil {
		return nil, err
	}
	c, err := value.Compare(a, b, noSpan)
	if err != nil {
		return nil, err
	}
	return value.Bool(c < 0), nil
}
