// Package ast defines the expression AST of the configuration language.
package ast

import "fmt"

// Span represents a source location range.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.StartLine, s.StartCol)
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Kind() string
	NodeSpan() Span
}

// BinaryOp represents a binary operator.
type BinaryOp string

const (
	OpAdd    BinaryOp = "+"
	OpSub    BinaryOp = "-"
	OpMul    BinaryOp = "*"
	OpDiv    BinaryOp = "/"
	OpLt     BinaryOp = "<"
	OpLtEq   BinaryOp = "<="
	OpGt     BinaryOp = ">"
	OpGtEq   BinaryOp = ">="
	OpEqEq   BinaryOp = "=="
	OpNeq    BinaryOp = "!="
	OpAnd    BinaryOp = "&&"
	OpOr     BinaryOp = "||"
	OpImpl   BinaryOp = "->"
	OpConcat BinaryOp = "++"
	OpUpdate BinaryOp = "//"
)

// UnaryOp represents a unary operator.
type UnaryOp string

const (
	OpNeg UnaryOp = "-"
	OpNot UnaryOp = "!"
)

// --- Expr is the interface for all expression nodes ---

type Expr interface {
	Node
	exprNode() // sealed marker
}

// --- Literal Expressions ---

type IntLiteral struct {
	Span  Span
	Value int64
}

func (n *IntLiteral) Kind() string   { return "IntLiteral" }
func (n *IntLiteral) NodeSpan() Span { return n.Span }
func (n *IntLiteral) exprNode()      {}

type FloatLiteral struct {
	Span  Span
	Value float64
}

func (n *FloatLiteral) Kind() string   { return "FloatLiteral" }
func (n *FloatLiteral) NodeSpan() Span { return n.Span }
func (n *FloatLiteral) exprNode()      {}

// StrPart is one piece of a string literal: literal text when Expr is nil,
// an interpolation otherwise.
type StrPart struct {
	Text string
	Expr Expr
}

type StrLiteral struct {
	Span  Span
	Parts []StrPart
}

func (n *StrLiteral) Kind() string   { return "StrLiteral" }
func (n *StrLiteral) NodeSpan() Span { return n.Span }
func (n *StrLiteral) exprNode()      {}

// Constant reports whether the string has no interpolations and returns its text.
func (n *StrLiteral) Constant() (string, bool) {
	var s string
	for _, p := range n.Parts {
		if p.Expr != nil {
			return "", false
		}
		s += p.Text
	}
	return s, true
}

type PathLiteral struct {
	Span  Span
	Value string
}

func (n *PathLiteral) Kind() string   { return "PathLiteral" }
func (n *PathLiteral) NodeSpan() Span { return n.Span }
func (n *PathLiteral) exprNode()      {}

// --- Variables and functions ---

type Var struct {
	Span Span
	Name string
}

func (n *Var) Kind() string   { return "Var" }
func (n *Var) NodeSpan() Span { return n.Span }
func (n *Var) exprNode()      {}

// Formal is one entry of a set-pattern lambda argument.
type Formal struct {
	Span    Span
	Name    string
	Default Expr
}

// Formals is the `{ a, b ? 1, ... }` argument pattern of a lambda.
type Formals struct {
	Entries  []*Formal
	Ellipsis bool
}

// Lambda is `param: body`, `{ … }: body` or `param@{ … }: body`.
// Param is empty for pattern lambdas without an @-binding.
type Lambda struct {
	Span    Span
	Param   string
	Formals *Formals
	Body    Expr
}

func (n *Lambda) Kind() string   { return "Lambda" }
func (n *Lambda) NodeSpan() Span { return n.Span }
func (n *Lambda) exprNode()      {}

type Apply struct {
	Span Span
	Fn   Expr
	Arg  Expr
}

func (n *Apply) Kind() string   { return "Apply" }
func (n *Apply) NodeSpan() Span { return n.Span }
func (n *Apply) exprNode()      {}

// --- Attribute sets ---

// AttrName is one segment of an attribute path: a static name, or a
// dynamic `${…}` / interpolated-string expression.
type AttrName struct {
	Span    Span
	Name    string
	Dynamic Expr
}

// Static reports whether the name is known at parse time.
func (a AttrName) Static() bool { return a.Dynamic == nil }

func (a AttrName) String() string {
	if a.Dynamic != nil {
		return "${…}"
	}
	return a.Name
}

// Binding is an entry of an attribute set or let block.
type Binding interface {
	Node
	bindingNode() // sealed marker
}

// AttrBinding is `path = value;`. The parser desugars `a.b = v;` into
// nested AttrSets, so parsed bindings always carry a single-segment path.
type AttrBinding struct {
	Span  Span
	Path  []AttrName
	Value Expr
}

func (n *AttrBinding) Kind() string   { return "AttrBinding" }
func (n *AttrBinding) NodeSpan() Span { return n.Span }
func (n *AttrBinding) bindingNode()   {}

// Inherit is `inherit a b;` or `inherit (from) a b;`.
type Inherit struct {
	Span  Span
	From  Expr
	Names []AttrName
}

func (n *Inherit) Kind() string   { return "Inherit" }
func (n *Inherit) NodeSpan() Span { return n.Span }
func (n *Inherit) bindingNode()   {}

type AttrSet struct {
	Span     Span
	Rec      bool
	Bindings []Binding
}

func (n *AttrSet) Kind() string   { return "AttrSet" }
func (n *AttrSet) NodeSpan() Span { return n.Span }
func (n *AttrSet) exprNode()      {}

// Select is `base.a.b` or `base.a.b or default`.
type Select struct {
	Span    Span
	Base    Expr
	Path    []AttrName
	Default Expr
}

func (n *Select) Kind() string   { return "Select" }
func (n *Select) NodeSpan() Span { return n.Span }
func (n *Select) exprNode()      {}

// HasAttr is `base ? a.b`.
type HasAttr struct {
	Span Span
	Base Expr
	Path []AttrName
}

func (n *HasAttr) Kind() string   { return "HasAttr" }
func (n *HasAttr) NodeSpan() Span { return n.Span }
func (n *HasAttr) exprNode()      {}

type ListExpr struct {
	Span     Span
	Elements []Expr
}

func (n *ListExpr) Kind() string   { return "ListExpr" }
func (n *ListExpr) NodeSpan() Span { return n.Span }
func (n *ListExpr) exprNode()      {}

// --- Scoping and control flow ---

type Let struct {
	Span     Span
	Bindings []Binding
	Body     Expr
}

func (n *Let) Kind() string   { return "Let" }
func (n *Let) NodeSpan() Span { return n.Span }
func (n *Let) exprNode()      {}

type With struct {
	Span  Span
	Scope Expr
	Body  Expr
}

func (n *With) Kind() string   { return "With" }
func (n *With) NodeSpan() Span { return n.Span }
func (n *With) exprNode()      {}

type Assert struct {
	Span Span
	Cond Expr
	Body Expr
}

func (n *Assert) Kind() string   { return "Assert" }
func (n *Assert) NodeSpan() Span { return n.Span }
func (n *Assert) exprNode()      {}

type IfExpr struct {
	Span Span
	Cond Expr
	Then Expr
	Else Expr
}

func (n *IfExpr) Kind() string   { return "IfExpr" }
func (n *IfExpr) NodeSpan() Span { return n.Span }
func (n *IfExpr) exprNode()      {}

// --- Binary & Unary Expressions ---

type BinaryExpr struct {
	Span  Span
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (n *BinaryExpr) Kind() string   { return "BinaryExpr" }
func (n *BinaryExpr) NodeSpan() Span { return n.Span }
func (n *BinaryExpr) exprNode()      {}

type UnaryExpr struct {
	Span    Span
	Op      UnaryOp
	Operand Expr
}

func (n *UnaryExpr) Kind() string   { return "UnaryExpr" }
func (n *UnaryExpr) NodeSpan() Span { return n.Span }
func (n *UnaryExpr) exprNode()      {}

// BindingNames returns the static names a binding list introduces, in order.
// Dynamic bindings are skipped.
func BindingNames(bindings []Binding) []string {
	var names []string
	for _, b := range bindings {
		switch b := b.(type) {
		case *AttrBinding:
			if len(b.Path) > 0 && b.Path[0].Static() {
				names = append(names, b.Path[0].Name)
			}
		case *Inherit:
			for _, n := range b.Names {
				if n.Static() {
					names = append(names, n.Name)
				}
			}
		}
	}
	return names
}

// Depth returns the nesting depth of an expression tree.
func Depth(e Expr) int {
	max := 0
	Walk(e, func(child Expr) {
		if d := Depth(child); d > max {
			max = d
		}
	})
	return max + 1
}

// Walk calls fn on every direct subexpression of e.
func Walk(e Expr, fn func(Expr)) {
	visit := func(x Expr) {
		if x != nil {
			fn(x)
		}
	}
	visitNames := func(names []AttrName) {
		for _, n := range names {
			visit(n.Dynamic)
		}
	}
	visitBindings := func(bs []Binding) {
		for _, b := range bs {
			switch b := b.(type) {
			case *AttrBinding:
				visitNames(b.Path)
				visit(b.Value)
			case *Inherit:
				visit(b.From)
				visitNames(b.Names)
			}
		}
	}
	switch n := e.(type) {
	case *StrLiteral:
		for _, p := range n.Parts {
			visit(p.Expr)
		}
	case *Lambda:
		if n.Formals != nil {
			for _, f := range n.Formals.Entries {
				visit(f.Default)
			}
		}
		visit(n.Body)
	case *Apply:
		visit(n.Fn)
		visit(n.Arg)
	case *AttrSet:
		visitBindings(n.Bindings)
	case *Select:
		visit(n.Base)
		visitNames(n.Path)
		visit(n.Default)
	case *HasAttr:
		visit(n.Base)
		visitNames(n.Path)
	case *ListExpr:
		for _, el := range n.Elements {
			visit(el)
		}
	case *Let:
		visitBindings(n.Bindings)
		visit(n.Body)
	case *With:
		visit(n.Scope)
		visit(n.Body)
	case *Assert:
		visit(n.Cond)
		visit(n.Body)
	case *IfExpr:
		visit(n.Cond)
		visit(n.Then)
		visit(n.Else)
	case *BinaryExpr:
		visit(n.Left)
		visit(n.Right)
	case *UnaryExpr:
		visit(n.Operand)
	}
}
