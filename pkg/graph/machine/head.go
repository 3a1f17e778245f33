package machine

import (
	"github.com/ConnorBaker/nix-sub005/pkg/graph/layers"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/term"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// Head is a value in weak head normal form. Fields below the head stay
// unforced cells.
type Head interface {
	isHead()
}

type (
	Int    int64
	Float  float64
	Bool   bool
	String string
	Path   string
	Null   struct{}
)

// Closure is a lambda node paired with the frames it was created in.
type Closure struct {
	Node term.Ref
	Env  *Env
}

// Attrs is an attribute set as a chain of layers.
type Attrs struct {
	Top *layers.Layer[*Cell]
}

type List struct {
	Elems []*Cell
}

// Foreign is a host function reached through the environment.
type Foreign struct {
	Fn *value.Lambda
}

func (Int) isHead()      {}
func (Float) isHead()    {}
func (Bool) isHead()     {}
func (String) isHead()   {}
func (Path) isHead()     {}
func (Null) isHead()     {}
func (*Closure) isHead() {}
func (*Attrs) isHead()   {}
func (*List) isHead()    {}
func (*Foreign) isHead() {}

// Describe returns the phrase error messages use for h, identical to the
// host's for the corresponding value.
func Describe(h Head) string {
	switch h := h.(type) {
	case Int:
		return value.TInt.String()
	case Float:
		return value.TFloat.String()
	case Bool:
		return value.TBool.String()
	case String:
		return value.TString.String()
	case Path:
		return value.TPath.String()
	case Null:
		return value.TNull.String()
	case *Closure:
		return value.TLambda.String()
	case *Attrs:
		return value.TAttrs.String()
	case *List:
		return value.TList.String()
	case *Foreign:
		return value.Describe(h.Fn)
	}
	return "an unknown value"
}
