package machine

// Env is one runtime frame. Lambda frames hold one slot, let frames one
// per binding, and `with` frames none: they carry the scope cell instead.
type Env struct {
	parent *Env
	slots  []*Cell
	names  []string
	with   *Cell
}

func newFrame(parent *Env, names []string) *Env {
	return &Env{parent: parent, slots: make([]*Cell, len(names)), names: names}
}

func newWithFrame(parent *Env, scope *Cell) *Env {
	return &Env{parent: parent, with: scope}
}

// up returns the frame depth levels above e.
func (e *Env) up(depth int) *Env {
	for ; depth > 0 && e != nil; depth-- {
		e = e.parent
	}
	return e
}

func (e *Env) lookup(depth, slot int) *Cell {
	return e.up(depth).slots[slot]
}
