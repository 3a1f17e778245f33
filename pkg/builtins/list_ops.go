package builtins

import (
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// length list → int
func primLength(args []*value.Thunk) (value.Value, error) {
	list, err := forceList(args[0])
	if err != nil {
		return nil, err
	}
	return value.Int(len(list.Elems)), nil
}

// head list → first element
func primHead(args []*value.Thunk) (value.Value, error) {
	list, err := forceList(args[0])
	if err != nil {
		return nil, err
	}
	if len(list.Elems) == 0 {
		return nil, diagnostics.Errorf(diagnostics.EArgs, noSpan, "'builtins.head' called on an empty list")
	}
	return list.Elems[0].Force()
}

// tail list → list without its first element
func primTail(args []*value.Thunk) (value.Value, error) {
	list, err := forceList(args[0])
	if err != nil {
		return nil, err
	}
	if len(list.Elems) == 0 {
		return nil, diagnostics.Errorf(diagnostics.EArgs, noSpan, "'builtins.tail' called on an empty list")
	}
	return &value.List{Elems: list.Elems[1:]}, nil
}

// elemAt list n → element n
func primElemAt(args []*value.Thunk) (value.Value, error) {
	list, err := forceList(args[0])
	if err != nil {
		return nil, err
	}
	n, err := forceInt(args[1])
	if err != nil {
		return nil, err
	}
	if n < 0 || int64(n) >= int64(len(list.Elems)) {
		return nil, diagnostics.Errorf(diagnostics.EArgs, noSpan, "list index %d is out of bounds", n)
	}
	return list.Elems[n].Force()
}

// map f list → list, elements computed lazily
func primMap(args []*value.Thunk) (value.Value, error) {
	fn, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	list, err := forceList(args[1])
	if err != nil {
		return nil, err
	}
	out := make([]*value.Thunk, len(list.Elems))
	for i, el := range list.Elems {
		el := el
		out[i] = value.NewThunk(func() (value.Value, error) { return call(fn, el) })
	}
	return &value.List{Elems: out}, nil
}

// filter pred list → list of elements for which pred holds
func primFilter(args []*value.Thunk) (value.Value, error) {
	fn, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	list, err := forceList(args[1])
	if err != nil {
		return nil, err
	}
	var out []*value.Thunk
	for _, el := range list.Elems {
		r, err := call(fn, el)
		if err != nil {
			return nil, err
		}
		keep, ok := r.(value.Bool)
		if !ok {
			return nil, diagnostics.TypeMismatch(value.Describe(r), "a Boolean", noSpan)
		}
		if keep {
			out = append(out, el)
		}
	}
	return &value.List{Elems: out}, nil
}

// foldl' op nul list → strict left fold
func primFoldl(args []*value.Thunk) (value.Value, error) {
	fn, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	list, err := forceList(args[2])
	if err != nil {
		return nil, err
	}
	acc, err := args[1].Force()
	if err != nil {
		return nil, err
	}
	for _, el := range list.Elems {
		if acc, err = call2(fn, value.Forced(acc), el); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// genList f n → [ (f 0) … (f (n-1)) ], elements computed lazily
func primGenList(args []*value.Thunk) (value.Value, error) {
	fn, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	n, err := forceInt(args[1])
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, diagnostics.Errorf(diagnostics.EArgs, noSpan, "cannot create list of size %d", n)
	}
	out := make([]*value.Thunk, n)
	for i := range out {
		idx := value.Forced(value.Int(i))
		out[i] = value.NewThunk(func() (value.Value, error) { return call(fn, idx) })
	}
	return &value.List{Elems: out}, nil
}

// concatLists [ list … ] → list
func primConcatLists(args []*value.Thunk) (value.Value, error) {
	lists, err := forceList(args[0])
	if err != nil {
		return nil, err
	}
	var out []*value.Thunk
	for _, el := range lists.Elems {
		l, err := forceList(el)
		if err != nil {
			return nil, err
		}
		out = append(out, l.Elems...)
	}
	return &value.List{Elems: out}, nil
}
