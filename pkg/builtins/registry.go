// Package builtins provides the builtin functions of the language and the
// root environment that exposes them.
package builtins

import (
	"sort"

	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// Fn represents a builtin function taking Arity curried arguments.
type Fn struct {
	Name    string
	Arity   int
	Execute func(args []*value.Thunk) (value.Value, error)
}

// Registry holds registered builtin functions.
type Registry struct {
	fns map[string]*Fn
}

// NewRegistry creates a new empty builtin registry.
func NewRegistry() *Registry {
	return &Registry{
		fns: make(map[string]*Fn),
	}
}

// Register adds a builtin function to the registry.
func (r *Registry) Register(fn Fn) {
	r.fns[fn.Name] = &fn
}

// Get retrieves a builtin function by name.
func (r *Registry) Get(name string) *Fn {
	return r.fns[name]
}

// All returns all registered builtin functions.
func (r *Registry) All() map[string]*Fn {
	return r.fns
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Value returns the builtin as a curried function value, or nil when no
// builtin is registered under name.
func (r *Registry) Value(name string) value.Value {
	fn := r.fns[name]
	if fn == nil {
		return nil
	}
	return primop(fn, nil)
}

func primop(fn *Fn, collected []*value.Thunk) *value.Lambda {
	return &value.Lambda{
		Name:   fn.Name,
		Primop: true,
		Apply: func(arg *value.Thunk) (value.Value, error) {
			args := make([]*value.Thunk, len(collected), len(collected)+1)
			copy(args, collected)
			args = append(args, arg)
			if len(args) < fn.Arity {
				return primop(fn, args), nil
			}
			return fn.Execute(args)
		},
	}
}
