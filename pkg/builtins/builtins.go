package builtins

import (
	"strings"

	"github.com/go-logr/logr"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// globals are the builtins reachable without the `builtins.` prefix.
var globals = []string{
	"abort", "baseNameOf", "derivation", "dirOf", "import", "isNull",
	"map", "removeAttrs", "scopedImport", "throw", "toString",
}

// GlobalNames returns every name the root environment binds, including
// `builtins`, the constants and the `__`-prefixed aliases of r's builtins.
func GlobalNames(r *Registry) []string {
	names := []string{"builtins", "true", "false", "null"}
	names = append(names, globals...)
	for _, name := range r.Names() {
		names = append(names, "__"+name)
	}
	return names
}

// IsBuiltinName reports whether a free variable named name would resolve to
// a builtin in the root environment.
func IsBuiltinName(name string) bool {
	if strings.HasPrefix(name, "__") {
		return true
	}
	switch name {
	case "builtins", "null":
		return true
	}
	for _, g := range globals {
		if g == name {
			return true
		}
	}
	return false
}

// RegisterDefaults adds all builtin functions.
func RegisterDefaults(r *Registry, log logr.Logger) {
	// Arithmetic
	r.Register(Fn{Name: "add", Arity: 2, Execute: primAdd})
	r.Register(Fn{Name: "sub", Arity: 2, Execute: primSub})
	r.Register(Fn{Name: "mul", Arity: 2, Execute: primMul})
	r.Register(Fn{Name: "div", Arity: 2, Execute: primDiv})
	r.Register(Fn{Name: "lessThan", Arity: 2, Execute: primLessThan})

	// Predicates
	r.Register(Fn{Name: "typeOf", Arity: 1, Execute: primTypeOf})
	r.Register(Fn{Name: "isAttrs", Arity: 1, Execute: isType(value.TAttrs)})
	r.Register(Fn{Name: "isList", Arity: 1, Execute: isType(value.TList)})
	r.Register(Fn{Name: "isInt", Arity: 1, Execute: isType(value.TInt)})
	r.Register(Fn{Name: "isFloat", Arity: 1, Execute: isType(value.TFloat)})
	r.Register(Fn{Name: "isString", Arity: 1, Execute: isType(value.TString)})
	r.Register(Fn{Name: "isBool", Arity: 1, Execute: isType(value.TBool)})
	r.Register(Fn{Name: "isFunction", Arity: 1, Execute: isType(value.TLambda)})
	r.Register(Fn{Name: "isPath", Arity: 1, Execute: isType(value.TPath)})
	r.Register(Fn{Name: "isNull", Arity: 1, Execute: isType(value.TNull)})

	// List ops
	r.Register(Fn{Name: "length", Arity: 1, Execute: primLength})
	r.Register(Fn{Name: "head", Arity: 1, Execute: primHead})
	r.Register(Fn{Name: "tail", Arity: 1, Execute: primTail})
	r.Register(Fn{Name: "elemAt", Arity: 2, Execute: primElemAt})
	r.Register(Fn{Name: "map", Arity: 2, Execute: primMap})
	r.Register(Fn{Name: "filter", Arity: 2, Execute: primFilter})
	r.Register(Fn{Name: "foldl'", Arity: 3, Execute: primFoldl})
	r.Register(Fn{Name: "genList", Arity: 2, Execute: primGenList})
	r.Register(Fn{Name: "concatLists", Arity: 1, Execute: primConcatLists})

	// Attribute set ops
	r.Register(Fn{Name: "attrNames", Arity: 1, Execute: primAttrNames})
	r.Register(Fn{Name: "attrValues", Arity: 1, Execute: primAttrValues})
	r.Register(Fn{Name: "hasAttr", Arity: 2, Execute: primHasAttr})
	r.Register(Fn{Name: "getAttr", Arity: 2, Execute: primGetAttr})
	r.Register(Fn{Name: "removeAttrs", Arity: 2, Execute: primRemoveAttrs})
	r.Register(Fn{Name: "listToAttrs", Arity: 1, Execute: primListToAttrs})
	r.Register(Fn{Name: "mapAttrs", Arity: 2, Execute: primMapAttrs})

	// String ops
	r.Register(Fn{Name: "toString", Arity: 1, Execute: primToString})
	r.Register(Fn{Name: "stringLength", Arity: 1, Execute: primStringLength})
	r.Register(Fn{Name: "concatStringsSep", Arity: 2, Execute: primConcatStringsSep})
	r.Register(Fn{Name: "baseNameOf", Arity: 1, Execute: primBaseNameOf})
	r.Register(Fn{Name: "dirOf", Arity: 1, Execute: primDirOf})

	// JSON
	r.Register(Fn{Name: "fromJSON", Arity: 1, Execute: primFromJSON})
	r.Register(Fn{Name: "toJSON", Arity: 1, Execute: primToJSON})

	// Control
	r.Register(Fn{Name: "throw", Arity: 1, Execute: primThrow})
	r.Register(Fn{Name: "abort", Arity: 1, Execute: primAbort})
	r.Register(Fn{Name: "seq", Arity: 2, Execute: primSeq})
	r.Register(Fn{Name: "deepSeq", Arity: 2, Execute: primDeepSeq})
	r.Register(Fn{Name: "trace", Arity: 2, Execute: primTrace(log)})

	// Outside the supported language
	for _, name := range []string{"import", "scopedImport", "derivation"} {
		r.Register(Fn{Name: name, Arity: 1, Execute: unsupported(name)})
	}
}

// Defaults returns a registry with every builtin registered.
func Defaults(log logr.Logger) *Registry {
	r := NewRegistry()
	RegisterDefaults(r, log)
	return r
}

// BaseEnv builds the root environment: the `builtins` set, the constants,
// the global builtins and the `__`-prefixed aliases.
func BaseEnv(r *Registry) *value.Env {
	env := value.NewEnv(nil)
	members := map[string]*value.Thunk{
		"true":  value.Forced(value.Bool(true)),
		"false": value.Forced(value.Bool(false)),
		"null":  value.Forced(value.Null{}),
	}
	for name := range r.All() {
		members[name] = value.Forced(r.Value(name))
	}
	var set *value.Attrs
	members["builtins"] = value.NewThunk(func() (value.Value, error) { return set, nil })
	set = value.NewAttrs(members)

	env.Set("builtins", value.Forced(set))
	for _, name := range []string{"true", "false", "null"} {
		env.Set(name, members[name])
	}
	for _, name := range globals {
		if t, ok := members[name]; ok {
			env.Set(name, t)
		}
	}
	for name := range r.All() {
		env.Set("__"+name, members[name])
	}
	return env
}

func unsupported(name string) func([]*value.Thunk) (value.Value, error) {
	return func([]*value.Thunk) (value.Value, error) {
		return nil, diagnostics.Errorf(diagnostics.EUnsupported, ast.Span{}, "'%s' is not supported by this evaluator", name)
	}
}
