package builtins

import (
	"strings"

	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// baseNameOf "/a/b/" → "b"
func primBaseNameOf(args []*value.Thunk) (value.Value, error) {
	v, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	s, err := value.CoerceToString(v, noSpan)
	if err != nil {
		return nil, err
	}
	s = strings.TrimSuffix(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	return value.String(s), nil
}

// dirOf "/a/b" → "/a"; paths stay paths
func primDirOf(args []*value.Thunk) (value.Value, error) {
	v, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	s, err := value.CoerceToString(v, noSpan)
	if err != nil {
		return nil, err
	}
	dir := "."
	if i := strings.LastIndexByte(s, '/'); i == 0 {
		dir = "/"
	} else if i > 0 {
		dir = s[:i]
	}
	if _, isPath := v.(value.Path); isPath {
		return value.Path(dir), nil
	}
	return value.String(dir), nil
}
