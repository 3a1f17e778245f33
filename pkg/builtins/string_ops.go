package builtins

import (
	"strings"

	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// toString x → string
func primToString(args []*value.Thunk) (value.Value, error) {
	v, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	s, err := value.ToString(v, noSpan)
	if err != nil {
		return nil, err
	}
	return value.String(s), nil
}

// stringLength s → int
func primStringLength(args []*value.Thunk) (value.Value, error) {
	v, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	s, err := value.CoerceToString(v, noSpan)
	if err != nil {
		return nil, err
	}
	return value.Int(len(s)), nil
}

// concatStringsSep sep [ s … ] → string
func primConcatStringsSep(args []*value.Thunk) (value.Value, error) {
	sep, err := forceString(args[0])
	if err != nil {
		return nil, err
	}
	list, err := forceList(args[1])
	if err != nil {
		return nil, err
	}
	parts := make([]string, 0, len(list.Elems))
	for _, el := range list.Elems {
		v, err := el.Force()
		if err != nil {
			return nil, err
		}
		s, err := value.CoerceToString(v, noSpan)
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return value.String(strings.Join(parts, string(sep))), nil
}
