// Package value implements the runtime values of the configuration language.
package value

import (
	"sort"
)

// Type identifies the dynamic type of a Value.
type Type int

const (
	TInt Type = iota
	TFloat
	TBool
	TString
	TPath
	TNull
	TList
	TAttrs
	TLambda
)

// String returns the phrase used in error messages, e.g. "an integer".
func (t Type) String() string {
	switch t {
	case TInt:
		return "an integer"
	case TFloat:
		return "a float"
	case TBool:
		return "a Boolean"
	case TString:
		return "a string"
	case TPath:
		return "a path"
	case TNull:
		return "null"
	case TList:
		return "a list"
	case TAttrs:
		return "a set"
	case TLambda:
		return "a function"
	}
	return "an unknown value"
}

// Name returns the name reported by builtins.typeOf.
func (t Type) Name() string {
	switch t {
	case TInt:
		return "int"
	case TFloat:
		return "float"
	case TBool:
		return "bool"
	case TString:
		return "string"
	case TPath:
		return "path"
	case TNull:
		return "null"
	case TList:
		return "list"
	case TAttrs:
		return "set"
	case TLambda:
		return "lambda"
	}
	return "unknown"
}

// Value is the interface for all runtime values.
// Use the sealed marker method to restrict implementations to this package.
type Value interface {
	Type() Type
	value() // sealed marker
}

type Int int64

func (Int) Type() Type { return TInt }
func (Int) value()     {}

type Float float64

func (Float) Type() Type { return TFloat }
func (Float) value()     {}

type Bool bool

func (Bool) Type() Type { return TBool }
func (Bool) value()     {}

type String string

func (String) Type() Type { return TString }
func (String) value()     {}

type Path string

func (Path) Type() Type { return TPath }
func (Path) value()     {}

type Null struct{}

func (Null) Type() Type { return TNull }
func (Null) value()     {}

// List is an ordered sequence of lazily evaluated elements.
type List struct {
	Elems []*Thunk
}

func (*List) Type() Type { return TList }
func (*List) value()     {}

// Attrs is an attribute set. Names are kept sorted, which is the order
// attribute sets are iterated and printed in.
type Attrs struct {
	names []string
	m     map[string]*Thunk
}

func (*Attrs) Type() Type { return TAttrs }
func (*Attrs) value()     {}

// NewAttrs builds an attribute set from m. The map is owned by the set
// afterwards.
func NewAttrs(m map[string]*Thunk) *Attrs {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return &Attrs{names: names, m: m}
}

// EmptyAttrs returns a set with no attributes.
func EmptyAttrs() *Attrs {
	return &Attrs{m: map[string]*Thunk{}}
}

// Get returns the thunk bound to name.
func (a *Attrs) Get(name string) (*Thunk, bool) {
	t, ok := a.m[name]
	return t, ok
}

// Names returns attribute names in sorted order.
func (a *Attrs) Names() []string {
	return a.names
}

// Len returns the number of attributes.
func (a *Attrs) Len() int {
	return len(a.names)
}

// Merge returns a new set holding the attributes of a overridden by those of b.
func (a *Attrs) Merge(b *Attrs) *Attrs {
	if b.Len() == 0 {
		return a
	}
	if a.Len() == 0 {
		return b
	}
	m := make(map[string]*Thunk, len(a.m)+len(b.m))
	for k, v := range a.m {
		m[k] = v
	}
	for k, v := range b.m {
		m[k] = v
	}
	return NewAttrs(m)
}

// Lambda is a function value. Primops are host-implemented builtins.
type Lambda struct {
	Name   string
	Primop bool
	Apply  func(arg *Thunk) (Value, error)
}

func (*Lambda) Type() Type { return TLambda }
func (*Lambda) value()     {}

// Describe returns the error-message phrase for v.
func Describe(v Value) string {
	if l, ok := v.(*Lambda); ok && l.Primop {
		return "a built-in function"
	}
	return v.Type().String()
}
