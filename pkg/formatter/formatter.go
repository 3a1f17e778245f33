// Package formatter prints expressions back to source and renders values
// as Nix syntax, JSON or YAML.
package formatter

import (
	"math"
	"strconv"
	"strings"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
)

const indent = "  "

// Precedence table for binary operators (higher = tighter binding)
var precedence = map[ast.BinaryOp]int{
	ast.OpImpl: 1,
	ast.OpOr:   2,
	ast.OpAnd:  3,
	ast.OpEqEq: 4, ast.OpNeq: 4,
	ast.OpLt: 5, ast.OpLtEq: 5, ast.OpGt: 5, ast.OpGtEq: 5,
	ast.OpUpdate: 6,
	ast.OpAdd:    8, ast.OpSub: 8,
	ast.OpMul: 9, ast.OpDiv: 9,
	ast.OpConcat: 10,
}

const notPrecedence = 7

var rightAssoc = map[ast.BinaryOp]bool{
	ast.OpImpl:   true,
	ast.OpUpdate: true,
	ast.OpConcat: true,
}

func needsParens(child ast.Expr, parentOp ast.BinaryOp, isRight bool) bool {
	switch c := child.(type) {
	case *ast.BinaryExpr:
		childPrec := precedence[c.Op]
		parentPrec := precedence[parentOp]
		if childPrec != parentPrec {
			return childPrec < parentPrec
		}
		// same precedence: parenthesize against the associativity
		return isRight != rightAssoc[parentOp]
	case *ast.UnaryExpr:
		return c.Op == ast.OpNot && notPrecedence < precedence[parentOp]
	}
	return isOpen(child)
}

// isOpen reports whether e extends as far right as possible and must be
// parenthesized when anything follows it.
func isOpen(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Lambda, *ast.Let, *ast.With, *ast.Assert, *ast.IfExpr:
		return true
	}
	return false
}

// isSimple reports whether e can appear as a function argument, select
// base or list element without parentheses.
func isSimple(e ast.Expr) bool {
	switch e.(type) {
	case *ast.IntLiteral, *ast.FloatLiteral, *ast.StrLiteral, *ast.PathLiteral,
		*ast.Var, *ast.AttrSet, *ast.ListExpr, *ast.Select:
		return true
	}
	return false
}

func paren(s string) string { return "(" + s + ")" }

// Format pretty-prints an expression back to source code.
func Format(e ast.Expr) string {
	return formatExpr(e, 0) + "\n"
}

func formatExpr(e ast.Expr, depth int) string {
	switch expr := e.(type) {
	case *ast.IntLiteral:
		return strconv.FormatInt(expr.Value, 10)
	case *ast.FloatLiteral:
		return formatFloatLiteral(expr.Value)
	case *ast.StrLiteral:
		return formatString(expr, depth)
	case *ast.PathLiteral:
		return expr.Value
	case *ast.Var:
		return expr.Name
	case *ast.Lambda:
		return formatLambda(expr, depth)
	case *ast.Apply:
		fn := formatExpr(expr.Fn, depth)
		if _, ok := expr.Fn.(*ast.Apply); !ok && !isSimple(expr.Fn) {
			fn = paren(fn)
		}
		arg := formatExpr(expr.Arg, depth)
		if !isSimple(expr.Arg) {
			arg = paren(arg)
		}
		return fn + " " + arg
	case *ast.AttrSet:
		return formatAttrSet(expr, depth)
	case *ast.Select:
		base := formatExpr(expr.Base, depth)
		if !isSimple(expr.Base) || isSelectWithDefault(expr.Base) {
			base = paren(base)
		}
		out := base + "." + formatAttrPath(expr.Path, depth)
		if expr.Default != nil {
			def := formatExpr(expr.Default, depth)
			if !isSimple(expr.Default) {
				def = paren(def)
			}
			out += " or " + def
		}
		return out
	case *ast.HasAttr:
		base := formatExpr(expr.Base, depth)
		if _, ok := expr.Base.(*ast.BinaryExpr); ok || isOpen(expr.Base) {
			base = paren(base)
		}
		return base + " ? " + formatAttrPath(expr.Path, depth)
	case *ast.ListExpr:
		return formatList(expr, depth)
	case *ast.Let:
		prefix := strings.Repeat(indent, depth)
		inner := strings.Repeat(indent, depth+1)
		var b strings.Builder
		b.WriteString("let\n")
		for _, binding := range expr.Bindings {
			b.WriteString(inner + formatBinding(binding, depth+1) + "\n")
		}
		b.WriteString(prefix + "in\n" + prefix + formatExpr(expr.Body, depth))
		return b.String()
	case *ast.With:
		return "with " + formatExpr(expr.Scope, depth) + "; " + formatExpr(expr.Body, depth)
	case *ast.Assert:
		return "assert " + formatExpr(expr.Cond, depth) + "; " + formatExpr(expr.Body, depth)
	case *ast.IfExpr:
		return "if " + formatExpr(expr.Cond, depth) +
			" then " + formatExpr(expr.Then, depth) +
			" else " + formatExpr(expr.Else, depth)
	case *ast.BinaryExpr:
		leftStr := formatExpr(expr.Left, depth)
		rightStr := formatExpr(expr.Right, depth)
		if needsParens(expr.Left, expr.Op, false) {
			leftStr = paren(leftStr)
		}
		if needsParens(expr.Right, expr.Op, true) {
			rightStr = paren(rightStr)
		}
		return leftStr + " " + string(expr.Op) + " " + rightStr
	case *ast.UnaryExpr:
		operandStr := formatExpr(expr.Operand, depth)
		switch expr.Operand.(type) {
		case *ast.BinaryExpr, *ast.UnaryExpr, *ast.HasAttr:
			operandStr = paren(operandStr)
		default:
			if isOpen(expr.Operand) {
				operandStr = paren(operandStr)
			}
		}
		return string(expr.Op) + operandStr
	}
	return ""
}

func isSelectWithDefault(e ast.Expr) bool {
	sel, ok := e.(*ast.Select)
	return ok && sel.Default != nil
}

func formatLambda(l *ast.Lambda, depth int) string {
	var head string
	if l.Formals != nil {
		parts := make([]string, 0, len(l.Formals.Entries)+1)
		for _, f := range l.Formals.Entries {
			if f.Default != nil {
				parts = append(parts, f.Name+" ? "+formatExpr(f.Default, depth))
			} else {
				parts = append(parts, f.Name)
			}
		}
		if l.Formals.Ellipsis {
			parts = append(parts, "...")
		}
		head = "{ " + strings.Join(parts, ", ") + " }"
		if len(parts) == 0 {
			head = "{ }"
		}
		if l.Param != "" {
			head = l.Param + "@" + head
		}
	} else {
		head = l.Param
	}
	return head + ": " + formatExpr(l.Body, depth)
}

func formatString(s *ast.StrLiteral, depth int) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, part := range s.Parts {
		if part.Expr != nil {
			b.WriteString("${" + formatExpr(part.Expr, depth) + "}")
			continue
		}
		b.WriteString(escapeString(part.Text))
	}
	b.WriteByte('"')
	return b.String()
}

func escapeString(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
		"${", `\${`,
	)
	return r.Replace(s)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		alpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
		if i == 0 && !alpha {
			return false
		}
		if !alpha && !(c >= '0' && c <= '9') && c != '\'' && c != '-' {
			return false
		}
	}
	switch s {
	case "let", "in", "rec", "with", "assert", "if", "then", "else", "inherit", "or":
		return false
	}
	return true
}

func formatAttrName(n ast.AttrName, depth int) string {
	if n.Dynamic != nil {
		if s, ok := n.Dynamic.(*ast.StrLiteral); ok {
			return formatString(s, depth)
		}
		return "${" + formatExpr(n.Dynamic, depth) + "}"
	}
	if isIdent(n.Name) {
		return n.Name
	}
	return strconv.Quote(n.Name)
}

func formatAttrPath(path []ast.AttrName, depth int) string {
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = formatAttrName(n, depth)
	}
	return strings.Join(parts, ".")
}

func formatBinding(b ast.Binding, depth int) string {
	switch b := b.(type) {
	case *ast.AttrBinding:
		return formatAttrPath(b.Path, depth) + " = " + formatExpr(b.Value, depth) + ";"
	case *ast.Inherit:
		out := "inherit"
		if b.From != nil {
			out += " (" + formatExpr(b.From, depth) + ")"
		}
		for _, n := range b.Names {
			out += " " + formatAttrName(n, depth)
		}
		return out + ";"
	}
	return ""
}

func formatFloatLiteral(value float64) string {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}

	raw := strconv.FormatFloat(value, 'g', -1, 64)
	// Check if it's in scientific notation
	if strings.ContainsAny(raw, "eE") {
		expanded := expandScientificNotation(raw)
		if !strings.Contains(expanded, ".") {
			expanded += ".0"
		}
		return expanded
	}
	if !strings.Contains(raw, ".") {
		raw += ".0"
	}
	return raw
}

func expandScientificNotation(value string) string {
	lower := strings.ToLower(value)
	parts := strings.SplitN(lower, "e", 2)
	if len(parts) != 2 {
		return value
	}

	mantissa := parts[0]
	exponent, err := strconv.Atoi(parts[1])
	if err != nil {
		return value
	}

	sign := ""
	digits := mantissa
	if strings.HasPrefix(digits, "-") {
		sign = "-"
		digits = digits[1:]
	} else if strings.HasPrefix(digits, "+") {
		digits = digits[1:]
	}

	dotIdx := strings.Index(digits, ".")
	intPart := digits
	fracPart := ""
	if dotIdx >= 0 {
		intPart = digits[:dotIdx]
		fracPart = digits[dotIdx+1:]
	}

	compact := intPart + fracPart
	decimalIndex := len(intPart) + exponent

	if decimalIndex <= 0 {
		return sign + "0." + strings.Repeat("0", -decimalIndex) + compact
	}
	if decimalIndex >= len(compact) {
		return sign + compact + strings.Repeat("0", decimalIndex-len(compact)) + ".0"
	}
	return sign + compact[:decimalIndex] + "." + compact[decimalIndex:]
}

func formatAttrSet(set *ast.AttrSet, depth int) string {
	prefix := ""
	if set.Rec {
		prefix = "rec "
	}
	if len(set.Bindings) == 0 {
		return prefix + "{ }"
	}

	// Try inline first
	inlineParts := make([]string, len(set.Bindings))
	for i, b := range set.Bindings {
		inlineParts[i] = formatBinding(b, depth+1)
	}
	inline := prefix + "{ " + strings.Join(inlineParts, " ") + " }"
	if len(inline) <= 72 && !strings.Contains(inline, "\n") {
		return inline
	}

	// Multi-line
	inner := strings.Repeat(indent, depth+1)
	outer := strings.Repeat(indent, depth)
	parts := make([]string, len(set.Bindings))
	for i, b := range set.Bindings {
		parts[i] = inner + formatBinding(b, depth+1)
	}
	return prefix + "{\n" + strings.Join(parts, "\n") + "\n" + outer + "}"
}

func formatList(list *ast.ListExpr, depth int) string {
	if len(list.Elements) == 0 {
		return "[ ]"
	}

	format := func(e ast.Expr) string {
		s := formatExpr(e, depth+1)
		if !isSimple(e) || isSelectWithDefault(e) {
			s = paren(s)
		}
		return s
	}

	// Try inline first
	inlineParts := make([]string, len(list.Elements))
	for i, e := range list.Elements {
		inlineParts[i] = format(e)
	}
	inline := "[ " + strings.Join(inlineParts, " ") + " ]"
	if len(inline) <= 72 && !strings.Contains(inline, "\n") {
		return inline
	}

	// Multi-line
	inner := strings.Repeat(indent, depth+1)
	outer := strings.Repeat(indent, depth)
	parts := make([]string, len(list.Elements))
	for i, e := range list.Elements {
		parts[i] = inner + format(e)
	}
	return "[\n" + strings.Join(parts, "\n") + "\n" + outer + "]"
}
