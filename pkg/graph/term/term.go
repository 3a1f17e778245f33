// Package term defines the term graph: the intermediate representation
// the compiler produces and the machine reduces.
//
// Nodes live in an arena owned by a Graph and refer to each other by Ref.
// A graph is built once per evaluation and never mutated afterwards.
package term

import (
	"fmt"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/layers"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/symbol"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// Ref addresses a node in a Graph.
type Ref int32

// NoRef marks an absent optional child.
const NoRef Ref = -1

// Kind tags a node.
type Kind uint8

const (
	KInt Kind = iota
	KFloat
	KBool
	KString
	KPath

	// KVar reads slot Slot of the frame Depth levels up.
	KVar
	// KHostVar is a free variable bound lexically in the host environment.
	KHostVar
	// KWithVar is a name only a `with` scope can supply.
	KWithVar
	// KUndefined raises an undefined-variable error when reduced.
	KUndefined

	// KLambda binds one slot; A is the body.
	KLambda
	// KApply: A is the function, B the argument.
	KApply
	// KLet pushes a frame with one slot per entry of Refs; A is the body.
	KLet
	// KWith: A is the scope, B the body.
	KWith
	// KAssert: A is the condition, B the body.
	KAssert
	// KIf: A is the condition, B and C the branches.
	KIf
	// KBinOp applies Op to A and B.
	KBinOp
	// KNot negates A.
	KNot
	// KAttrLayer stacks Layer on the set A evaluates to, or on nothing
	// when A is NoRef.
	KAttrLayer
	// KSelect looks up Path in A, falling back to C when it is not NoRef.
	KSelect
	// KHasAttr tests A for Sym.
	KHasAttr
	// KList holds its elements in Refs.
	KList
)

var kindNames = [...]string{
	KInt: "Int", KFloat: "Float", KBool: "Bool", KString: "String", KPath: "Path",
	KVar: "Var", KHostVar: "HostVar", KWithVar: "WithVar", KUndefined: "Undefined",
	KLambda: "Lambda", KApply: "Apply", KLet: "Let", KWith: "With", KAssert: "Assert",
	KIf: "If", KBinOp: "BinOp", KNot: "Not", KAttrLayer: "AttrLayer", KSelect: "Select",
	KHasAttr: "HasAttr", KList: "List",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsLiteral reports whether k carries an immediate value.
func (k Kind) IsLiteral() bool {
	return k <= KPath
}

// Op is a binary operator.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpEq
	OpNeq
	OpAnd
	OpOr
	OpImpl
	OpConcat
	OpUpdate
)

var opNames = [...]string{
	OpAdd: "+", OpSub: "-", OpEq: "==", OpNeq: "!=", OpAnd: "&&", OpOr: "||",
	OpImpl: "->", OpConcat: "++", OpUpdate: "//",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Node is a tagged variant; which fields are meaningful depends on Kind.
type Node struct {
	Kind Kind

	Int   int64
	Float float64
	Bool  bool
	Str   string // KString, KPath

	Depth, Slot int           // KVar; on KWithVar, Depth counts the innermost frames the name skips
	Sym         symbol.Symbol // KWithVar, KUndefined, KHostVar, KHasAttr
	Host        *value.Thunk  // KHostVar

	Op      Op
	A, B, C Ref
	Refs    []Ref
	Names   []string           // KLambda, KLet: slot names, for rebuilding host scopes
	Path    []symbol.Symbol    // KSelect
	Layer   *layers.Layer[Ref] // KAttrLayer

	// Expr is the expression the node was compiled from.
	Expr ast.Expr
}

// Span returns the source span of the originating expression.
func (n *Node) Span() ast.Span {
	if n.Expr == nil {
		return ast.Span{}
	}
	return n.Expr.NodeSpan()
}

// Graph is an arena of nodes plus the symbol table their names use.
type Graph struct {
	nodes   []Node
	Symbols *symbol.Table
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{Symbols: symbol.NewTable()}
}

// Add appends n and returns its reference. Unset child references must be
// NoRef, which the constructors below take care of.
func (g *Graph) Add(n Node) Ref {
	g.nodes = append(g.nodes, n)
	return Ref(len(g.nodes) - 1)
}

// Node returns the node r refers to. The pointer is valid until the next Add.
func (g *Graph) Node(r Ref) *Node {
	return &g.nodes[r]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) add(kind Kind, expr ast.Expr, fill func(*Node)) Ref {
	n := Node{Kind: kind, A: NoRef, B: NoRef, C: NoRef, Expr: expr}
	if fill != nil {
		fill(&n)
	}
	return g.Add(n)
}

func (g *Graph) Int(v int64, expr ast.Expr) Ref {
	return g.add(KInt, expr, func(n *Node) { n.Int = v })
}

func (g *Graph) Float(v float64, expr ast.Expr) Ref {
	return g.add(KFloat, expr, func(n *Node) { n.Float = v })
}

func (g *Graph) Bool(v bool, expr ast.Expr) Ref {
	return g.add(KBool, expr, func(n *Node) { n.Bool = v })
}

func (g *Graph) Str(s string, expr ast.Expr) Ref {
	return g.add(KString, expr, func(n *Node) { n.Str = s })
}

func (g *Graph) Path(p string, expr ast.Expr) Ref {
	return g.add(KPath, expr, func(n *Node) { n.Str = p })
}

func (g *Graph) Var(depth, slot int, expr ast.Expr) Ref {
	return g.add(KVar, expr, func(n *Node) { n.Depth, n.Slot = depth, slot })
}

func (g *Graph) HostVar(name string, t *value.Thunk, expr ast.Expr) Ref {
	sym := g.Symbols.Intern(name)
	return g.add(KHostVar, expr, func(n *Node) { n.Sym, n.Host = sym, t })
}

func (g *Graph) WithVar(name string, expr ast.Expr) Ref {
	sym := g.Symbols.Intern(name)
	return g.add(KWithVar, expr, func(n *Node) { n.Sym = sym })
}

func (g *Graph) Undefined(name string, expr ast.Expr) Ref {
	sym := g.Symbols.Intern(name)
	return g.add(KUndefined, expr, func(n *Node) { n.Sym = sym })
}

// Lambda reserves a lambda node; its body is patched in with SetBody once
// compiled, because the body's scope includes the lambda's own frame.
func (g *Graph) Lambda(param string, expr ast.Expr) Ref {
	return g.add(KLambda, expr, func(n *Node) { n.Names = []string{param} })
}

// Let reserves a let node with one slot per name.
func (g *Graph) Let(names []string, expr ast.Expr) Ref {
	return g.add(KLet, expr, func(n *Node) { n.Names = names })
}

// SetBody patches the body of a lambda or let node.
func (g *Graph) SetBody(r, body Ref) {
	g.nodes[r].A = body
}

// SetBindings patches the slot values of a let node.
func (g *Graph) SetBindings(r Ref, refs []Ref) {
	g.nodes[r].Refs = refs
}

func (g *Graph) Apply(fn, arg Ref, expr ast.Expr) Ref {
	return g.add(KApply, expr, func(n *Node) { n.A, n.B = fn, arg })
}

func (g *Graph) With(scope, body Ref, expr ast.Expr) Ref {
	return g.add(KWith, expr, func(n *Node) { n.A, n.B = scope, body })
}

func (g *Graph) Assert(cond, body Ref, expr ast.Expr) Ref {
	return g.add(KAssert, expr, func(n *Node) { n.A, n.B = cond, body })
}

func (g *Graph) If(cond, then, els Ref, expr ast.Expr) Ref {
	return g.add(KIf, expr, func(n *Node) { n.A, n.B, n.C = cond, then, els })
}

func (g *Graph) BinOp(op Op, l, r Ref, expr ast.Expr) Ref {
	return g.add(KBinOp, expr, func(n *Node) { n.Op, n.A, n.B = op, l, r })
}

func (g *Graph) Not(operand Ref, expr ast.Expr) Ref {
	return g.add(KNot, expr, func(n *Node) { n.A = operand })
}

// AttrLayer stacks layer on parent (NoRef for a standalone set).
func (g *Graph) AttrLayer(layer *layers.Layer[Ref], parent Ref, expr ast.Expr) Ref {
	return g.add(KAttrLayer, expr, func(n *Node) { n.Layer, n.A = layer, parent })
}

func (g *Graph) Select(base Ref, path []symbol.Symbol, def Ref, expr ast.Expr) Ref {
	return g.add(KSelect, expr, func(n *Node) { n.A, n.Path, n.C = base, path, def })
}

func (g *Graph) HasAttr(base Ref, sym symbol.Symbol, expr ast.Expr) Ref {
	return g.add(KHasAttr, expr, func(n *Node) { n.A, n.Sym = base, sym })
}

func (g *Graph) List(elems []Ref, expr ast.Expr) Ref {
	return g.add(KList, expr, func(n *Node) { n.Refs = elems })
}
