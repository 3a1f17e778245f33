package value

import (
	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
)

// Env is a scoped environment for variable bindings.
// Lexical frames bind names; `with` frames carry a scope whose attributes
// are visible only to names no lexical frame binds.
type Env struct {
	bindings map[string]*Thunk
	scope    *Thunk // non-nil for `with` frames
	parent   *Env
}

// NewEnv creates a new lexical scope with an optional parent.
func NewEnv(parent *Env) *Env {
	return &Env{
		bindings: make(map[string]*Thunk),
		parent:   parent,
	}
}

// NewWithEnv creates a `with` frame whose scope evaluates to a set.
func NewWithEnv(parent *Env, scope *Thunk) *Env {
	return &Env{scope: scope, parent: parent}
}

// Set binds a variable in this scope.
func (e *Env) Set(name string, t *Thunk) {
	e.bindings[name] = t
}

// LookupLexical finds name in the lexical frames, skipping `with` scopes.
func (e *Env) LookupLexical(name string) (*Thunk, bool) {
	for env := e; env != nil; env = env.parent {
		if t, ok := env.bindings[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// HasWith reports whether any enclosing frame is a `with` frame.
func (e *Env) HasWith() bool {
	for env := e; env != nil; env = env.parent {
		if env.scope != nil {
			return true
		}
	}
	return false
}

// LookupWith searches the `with` scopes, innermost first. Each scope is
// forced as it is reached and must be a set.
func (e *Env) LookupWith(name string) (*Thunk, bool, error) {
	for env := e; env != nil; env = env.parent {
		if env.scope == nil {
			continue
		}
		v, err := env.scope.Force()
		if err != nil {
			return nil, false, err
		}
		attrs, ok := v.(*Attrs)
		if !ok {
			return nil, false, diagnostics.TypeMismatch(Describe(v), "a set", ast.Span{})
		}
		if t, ok := attrs.Get(name); ok {
			return t, true, nil
		}
	}
	return nil, false, nil
}

// Lookup resolves name the way a variable reference does: lexical frames
// first, then `with` scopes.
func (e *Env) Lookup(name string) (*Thunk, bool, error) {
	if t, ok := e.LookupLexical(name); ok {
		return t, true, nil
	}
	return e.LookupWith(name)
}
