package builtins

import (
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// attrNames set → sorted list of names
func primAttrNames(args []*value.Thunk) (value.Value, error) {
	attrs, err := forceAttrs(args[0])
	if err != nil {
		return nil, err
	}
	out := make([]*value.Thunk, 0, attrs.Len())
	for _, name := range attrs.Names() {
		out = append(out, value.Forced(value.String(name)))
	}
	return &value.List{Elems: out}, nil
}

// attrValues set → values in name order
func primAttrValues(args []*value.Thunk) (value.Value, error) {
	attrs, err := forceAttrs(args[0])
	if err != nil {
		return nil, err
	}
	out := make([]*value.Thunk, 0, attrs.Len())
	for _, name := range attrs.Names() {
		t, _ := attrs.Get(name)
		out = append(out, t)
	}
	return &value.List{Elems: out}, nil
}

// hasAttr name set → bool
func primHasAttr(args []*value.Thunk) (value.Value, error) {
	name, err := forceString(args[0])
	if err != nil {
		return nil, err
	}
	attrs, err := forceAttrs(args[1])
	if err != nil {
		return nil, err
	}
	_, ok := attrs.Get(string(name))
	return value.Bool(ok), nil
}

// getAttr name set → value
func primGetAttr(args []*value.Thunk) (value.Value, error) {
	name, err := forceString(args[0])
	if err != nil {
		return nil, err
	}
	attrs, err := forceAttrs(args[1])
	if err != nil {
		return nil, err
	}
	t, ok := attrs.Get(string(name))
	if !ok {
		return nil, diagnostics.MissingAttr(string(name), noSpan)
	}
	return t.Force()
}

// removeAttrs set [ name … ] → set
func primRemoveAttrs(args []*value.Thunk) (value.Value, error) {
	attrs, err := forceAttrs(args[0])
	if err != nil {
		return nil, err
	}
	names, err := forceList(args[1])
	if err != nil {
		return nil, err
	}
	drop := map[string]bool{}
	for _, el := range names.Elems {
		name, err := forceString(el)
		if err != nil {
			return nil, err
		}
		drop[string(name)] = true
	}
	m := make(map[string]*value.Thunk, attrs.Len())
	for _, name := range attrs.Names() {
		if !drop[name] {
			m[name], _ = attrs.Get(name)
		}
	}
	return value.NewAttrs(m), nil
}

// listToAttrs [ { name; value; } … ] → set; the first occurrence of a name wins
func primListToAttrs(args []*value.Thunk) (value.Value, error) {
	list, err := forceList(args[0])
	if err != nil {
		return nil, err
	}
	m := make(map[string]*value.Thunk, len(list.Elems))
	for _, el := range list.Elems {
		entry, err := forceAttrs(el)
		if err != nil {
			return nil, err
		}
		nameT, ok := entry.Get("name")
		if !ok {
			return nil, diagnostics.MissingAttr("name", noSpan)
		}
		name, err := forceString(nameT)
		if err != nil {
			return nil, err
		}
		if _, dup := m[string(name)]; dup {
			continue
		}
		val, ok := entry.Get("value")
		if !ok {
			return nil, diagnostics.MissingAttr("value", noSpan)
		}
		m[string(name)] = val
	}
	return value.NewAttrs(m), nil
}

// mapAttrs f set → set, values computed lazily as f name value
func primMapAttrs(args []*value.Thunk) (value.Value, error) {
	fn, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	attrs, err := forceAttrs(args[1])
	if err != nil {
		return nil, err
	}
	m := make(map[string]*value.Thunk, attrs.Len())
	for _, name := range attrs.Names() {
		t, _ := attrs.Get(name)
		key := value.Forced(value.String(name))
		m[name] = value.NewThunk(func() (value.Value, error) { return call2(fn, key, t) })
	}
	return value.NewAttrs(m), nil
}
