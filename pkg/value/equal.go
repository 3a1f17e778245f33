package value

// Equal implements `==`: deep structural equality that forces the elements
// and attributes it compares. Integers and floats compare numerically.
// Functions are never equal.
func Equal(a, b Value) (bool, error) {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			return x == y, nil
		case Float:
			return Float(x) == y, nil
		}
		return false, nil
	case Float:
		switch y := b.(type) {
		case Float:
			return x == y, nil
		case Int:
			return x == Float(y), nil
		}
		return false, nil
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y, nil
	case String:
		y, ok := b.(String)
		return ok && x == y, nil
	case Path:
		y, ok := b.(Path)
		return ok && x == y, nil
	case Null:
		_, ok := b.(Null)
		return ok, nil
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false, nil
		}
		for i := range x.Elems {
			eq, err := thunksEqual(x.Elems[i], y.Elems[i])
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case *Attrs:
		y, ok := b.(*Attrs)
		if !ok || x.Len() != y.Len() {
			return false, nil
		}
		for _, name := range x.Names() {
			ty, ok := y.Get(name)
			if !ok {
				return false, nil
			}
			tx, _ := x.Get(name)
			eq, err := thunksEqual(tx, ty)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}
	return false, nil
}

func thunksEqual(a, b *Thunk) (bool, error) {
	if a == b {
		return true, nil
	}
	va, err := a.Force()
	if err != nil {
		return false, err
	}
	vb, err := b.Force()
	if err != nil {
		return false, err
	}
	return Equal(va, vb)
}
