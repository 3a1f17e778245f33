package value

// ForceDeep forces every list element and attribute reachable from v.
// Shared and cyclic structures are visited once.
func ForceDeep(v Value) error {
	return forceDeep(v, map[any]bool{})
}

func forceDeep(v Value, seen map[any]bool) error {
	var thunks []*Thunk
	switch x := v.(type) {
	case *List:
		if seen[x] {
			return nil
		}
		seen[x] = true
		thunks = x.Elems
	case *Attrs:
		if seen[x] {
			return nil
		}
		seen[x] = true
		for _, name := range x.Names() {
			t, _ := x.Get(name)
			thunks = append(thunks, t)
		}
	default:
		return nil
	}
	for _, t := range thunks {
		ev, err := t.Force()
		if err != nil {
			return err
		}
		if err := forceDeep(ev, seen); err != nil {
			return err
		}
	}
	return nil
}
