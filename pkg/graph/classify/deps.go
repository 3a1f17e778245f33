package classify

import "github.com/ConnorBaker/nix-sub005/pkg/ast"

// freeVars collects the names expr reads that bound does not bind.
// Names a `with` could supply count as free.
func freeVars(expr ast.Expr, bound *scope, out map[string]bool) {
	switch e := expr.(type) {
	case nil:
	case *ast.Var:
		if !bound.has(e.Name) {
			out[e.Name] = true
		}
	case *ast.Lambda:
		names := []string{}
		if e.Param != "" {
			names = append(names, e.Param)
		}
		if e.Formals != nil {
			for _, f := range e.Formals.Entries {
				names = append(names, f.Name)
			}
		}
		inner := newScope(bound, names...)
		if e.Formals != nil {
			for _, f := range e.Formals.Entries {
				freeVars(f.Default, inner, out)
			}
		}
		freeVars(e.Body, inner, out)
	case *ast.Let:
		inner := newScope(bound, ast.BindingNames(e.Bindings)...)
		bindingFreeVars(e.Bindings, bound, inner, out)
		freeVars(e.Body, inner, out)
	case *ast.AttrSet:
		if e.Rec {
			inner := newScope(bound, ast.BindingNames(e.Bindings)...)
			bindingFreeVars(e.Bindings, bound, inner, out)
			return
		}
		bindingFreeVars(e.Bindings, bound, bound, out)
	default:
		ast.Walk(expr, func(child ast.Expr) { freeVars(child, bound, out) })
	}
}

func bindingFreeVars(bindings []ast.Binding, outer, inner *scope, out map[string]bool) {
	for _, b := range bindings {
		switch b := b.(type) {
		case *ast.AttrBinding:
			for _, n := range b.Path {
				freeVars(n.Dynamic, inner, out)
			}
			freeVars(b.Value, inner, out)
		case *ast.Inherit:
			for _, n := range b.Names {
				freeVars(n.Dynamic, inner, out)
			}
			if b.From != nil {
				freeVars(b.From, inner, out)
				continue
			}
			for _, n := range b.Names {
				if n.Static() && !outer.has(n.Name) {
					out[n.Name] = true
				}
			}
		}
	}
}

// groupDeps maps every member of a recursive binding group to the members
// its value reads. A plain inherit reads the enclosing scope, never the
// group itself.
func groupDeps(bindings []ast.Binding) (order []string, deps map[string][]string) {
	members := make(map[string]bool)
	for _, n := range ast.BindingNames(bindings) {
		if !members[n] {
			members[n] = true
			order = append(order, n)
		}
	}
	deps = make(map[string][]string, len(order))
	add := func(name string, value ast.Expr) {
		free := make(map[string]bool)
		freeVars(value, nil, free)
		for _, m := range order {
			if free[m] {
				deps[name] = append(deps[name], m)
			}
		}
	}
	for _, b := range bindings {
		switch b := b.(type) {
		case *ast.AttrBinding:
			if len(b.Path) > 0 && b.Path[0].Static() {
				add(b.Path[0].Name, b.Value)
			}
		case *ast.Inherit:
			if b.From == nil {
				continue
			}
			for _, n := range b.Names {
				if n.Static() {
					add(n.Name, b.From)
				}
			}
		}
	}
	return order, deps
}

// findCycle returns a member of the group that lies on a dependency cycle,
// or "" when the group is acyclic.
func findCycle(bindings []ast.Binding) string {
	order, deps := groupDeps(bindings)
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(order))
	var visit func(string) string
	visit = func(n string) string {
		switch state[n] {
		case active:
			return n
		case done:
			return ""
		}
		state[n] = active
		for _, d := range deps[n] {
			if c := visit(d); c != "" {
				return c
			}
		}
		state[n] = done
		return ""
	}
	for _, n := range order {
		if c := visit(n); c != "" {
			return c
		}
	}
	return ""
}
