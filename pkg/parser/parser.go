// Package parser implements the parser for the configuration language.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/lexer"
)

type parser struct {
	tokens []lexer.Token
	pos    int
	diags  []diagnostics.Diagnostic
}

// Parse tokenizes source and parses it into a single expression.
func Parse(source, filename string) (ast.Expr, []diagnostics.Diagnostic) {
	tokens, err := lexer.Tokenize(source, filename)
	if err != nil {
		if le, ok := err.(*lexer.LexError); ok {
			return nil, []diagnostics.Diagnostic{le.Diag}
		}
		return nil, []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.ELex, err.Error(), nil, "")}
	}

	p := &parser{tokens: tokens, pos: 0}
	expr := p.parseTop()
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return expr, nil
}

func (p *parser) parseTop() ast.Expr {
	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	if tok := p.current(); tok.Type != lexer.TokEOF {
		p.addError(fmt.Sprintf("unexpected %s, expected end of file", describe(tok)), &tok.Span)
		return nil
	}
	return expr
}

func (p *parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *parser) peek() lexer.TokenType {
	return p.current().Type
}

func (p *parser) peekAt(offset int) lexer.TokenType {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return lexer.TokEOF
	}
	return p.tokens[idx].Type
}

func (p *parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ lexer.TokenType) (lexer.Token, bool) {
	tok := p.current()
	if tok.Type != typ {
		p.addError(fmt.Sprintf("expected %s, got %s", tokenName(typ), describe(tok)), &tok.Span)
		return tok, false
	}
	return p.advance(), true
}

func (p *parser) addError(msg string, span *ast.Span) {
	p.diags = append(p.diags, diagnostics.MakeDiag(diagnostics.EParse, msg, span, ""))
}

func (p *parser) spanFromTo(start, end ast.Span) ast.Span {
	return ast.Span{
		File:      start.File,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

// prev returns the span of the most recently consumed token.
func (p *parser) prev() ast.Span {
	if p.pos == 0 {
		return p.current().Span
	}
	return p.tokens[p.pos-1].Span
}

func describe(tok lexer.Token) string {
	if tok.Type == lexer.TokEOF {
		return "end of file"
	}
	return fmt.Sprintf("'%s'", tok.Value)
}

func tokenName(t lexer.TokenType) string {
	switch t {
	case lexer.TokLBrace:
		return "'{'"
	case lexer.TokRBrace:
		return "'}'"
	case lexer.TokRBracket:
		return "']'"
	case lexer.TokRParen:
		return "')'"
	case lexer.TokColon:
		return "':'"
	case lexer.TokSemi:
		return "';'"
	case lexer.TokEquals:
		return "'='"
	case lexer.TokIn:
		return "'in'"
	case lexer.TokThen:
		return "'then'"
	case lexer.TokElse:
		return "'else'"
	case lexer.TokIdent:
		return "identifier"
	case lexer.TokEOF:
		return "end of file"
	default:
		return fmt.Sprintf("token(%d)", t)
	}
}

// startsSimple reports whether a token can begin an application argument.
func startsSimple(t lexer.TokenType) bool {
	switch t {
	case lexer.TokIdent, lexer.TokIntLit, lexer.TokFloatLit, lexer.TokStringLit, lexer.TokPathLit,
		lexer.TokLParen, lexer.TokLBrace, lexer.TokLBracket, lexer.TokRec:
		return true
	}
	return false
}

// --- Expressions ---

func (p *parser) parseExpr() ast.Expr {
	switch p.peek() {
	case lexer.TokIdent:
		if next := p.peekAt(1); next == lexer.TokColon || next == lexer.TokAt {
			return p.parseLambda()
		}
	case lexer.TokLBrace:
		if p.looksLikeFormals() {
			return p.parseLambda()
		}
	case lexer.TokLet:
		return p.parseLet()
	case lexer.TokWith:
		return p.parseWith()
	case lexer.TokAssert:
		return p.parseAssert()
	case lexer.TokIf:
		return p.parseIf()
	}
	return p.parseImpl()
}

// looksLikeFormals decides, at a '{', between a set pattern and an attribute set.
func (p *parser) looksLikeFormals() bool {
	switch p.peekAt(1) {
	case lexer.TokRBrace:
		next := p.peekAt(2)
		return next == lexer.TokColon || next == lexer.TokAt
	case lexer.TokEllipsis:
		return true
	case lexer.TokIdent:
		switch p.peekAt(2) {
		case lexer.TokComma, lexer.TokQuestion:
			return true
		case lexer.TokRBrace:
			next := p.peekAt(3)
			return next == lexer.TokColon || next == lexer.TokAt
		}
	}
	return false
}

func (p *parser) parseLambda() ast.Expr {
	start := p.current().Span
	lam := &ast.Lambda{}

	if p.peek() == lexer.TokIdent {
		lam.Param = p.advance().Value
		if p.peek() == lexer.TokAt {
			p.advance()
			if lam.Formals = p.parseFormals(); lam.Formals == nil {
				return nil
			}
		}
	} else {
		if lam.Formals = p.parseFormals(); lam.Formals == nil {
			return nil
		}
		if p.peek() == lexer.TokAt {
			p.advance()
			nameTok, ok := p.expect(lexer.TokIdent)
			if !ok {
				return nil
			}
			lam.Param = nameTok.Value
		}
	}
	if lam.Formals != nil && lam.Param != "" {
		for _, f := range lam.Formals.Entries {
			if f.Name == lam.Param {
				span := f.Span
				p.addError(fmt.Sprintf("duplicate formal function argument '%s'", f.Name), &span)
				return nil
			}
		}
	}

	if _, ok := p.expect(lexer.TokColon); !ok {
		return nil
	}
	body := p.parseExpr()
	if body == nil {
		return nil
	}
	lam.Body = body
	lam.Span = p.spanFromTo(start, body.NodeSpan())
	return lam
}

func (p *parser) parseFormals() *ast.Formals {
	if _, ok := p.expect(lexer.TokLBrace); !ok {
		return nil
	}
	formals := &ast.Formals{}
	seen := map[string]bool{}
	for p.peek() != lexer.TokRBrace {
		if p.peek() == lexer.TokEllipsis {
			p.advance()
			formals.Ellipsis = true
			break
		}
		nameTok, ok := p.expect(lexer.TokIdent)
		if !ok {
			return nil
		}
		if seen[nameTok.Value] {
			p.addError(fmt.Sprintf("duplicate formal function argument '%s'", nameTok.Value), &nameTok.Span)
			return nil
		}
		seen[nameTok.Value] = true
		f := &ast.Formal{Span: nameTok.Span, Name: nameTok.Value}
		if p.peek() == lexer.TokQuestion {
			p.advance()
			if f.Default = p.parseExpr(); f.Default == nil {
				return nil
			}
		}
		formals.Entries = append(formals.Entries, f)
		if p.peek() != lexer.TokComma {
			break
		}
		p.advance()
	}
	if _, ok := p.expect(lexer.TokRBrace); !ok {
		return nil
	}
	return formals
}

func (p *parser) parseLet() ast.Expr {
	start := p.advance() // consume 'let'
	bindings := p.parseBindings(lexer.TokIn, false)
	if bindings == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokIn); !ok {
		return nil
	}
	body := p.parseExpr()
	if body == nil {
		return nil
	}
	return &ast.Let{
		Span:     p.spanFromTo(start.Span, body.NodeSpan()),
		Bindings: bindings.bindings,
		Body:     body,
	}
}

func (p *parser) parseWith() ast.Expr {
	start := p.advance() // consume 'with'
	scope := p.parseExpr()
	if scope == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokSemi); !ok {
		return nil
	}
	body := p.parseExpr()
	if body == nil {
		return nil
	}
	return &ast.With{Span: p.spanFromTo(start.Span, body.NodeSpan()), Scope: scope, Body: body}
}

func (p *parser) parseAssert() ast.Expr {
	start := p.advance() // consume 'assert'
	cond := p.parseExpr()
	if cond == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokSemi); !ok {
		return nil
	}
	body := p.parseExpr()
	if body == nil {
		return nil
	}
	return &ast.Assert{Span: p.spanFromTo(start.Span, body.NodeSpan()), Cond: cond, Body: body}
}

func (p *parser) parseIf() ast.Expr {
	start := p.advance() // consume 'if'
	cond := p.parseExpr()
	if cond == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokThen); !ok {
		return nil
	}
	then := p.parseExpr()
	if then == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokElse); !ok {
		return nil
	}
	els := p.parseExpr()
	if els == nil {
		return nil
	}
	return &ast.IfExpr{Span: p.spanFromTo(start.Span, els.NodeSpan()), Cond: cond, Then: then, Else: els}
}

// --- Operators, lowest precedence first ---

func (p *parser) binary(op ast.BinaryOp, left, right ast.Expr) ast.Expr {
	return &ast.BinaryExpr{
		Span:  p.spanFromTo(left.NodeSpan(), right.NodeSpan()),
		Op:    op,
		Left:  left,
		Right: right,
	}
}

// parseImpl: a -> b (right associative)
func (p *parser) parseImpl() ast.Expr {
	left := p.parseOr()
	if left == nil {
		return nil
	}
	if p.peek() == lexer.TokArrow {
		p.advance()
		right := p.parseImpl()
		if right == nil {
			return nil
		}
		return p.binary(ast.OpImpl, left, right)
	}
	return left
}

func (p *parser) parseOr() ast.Expr {
	left := p.parseAnd()
	if left == nil {
		return nil
	}
	for p.peek() == lexer.TokOrOr {
		p.advance()
		right := p.parseAnd()
		if right == nil {
			return nil
		}
		left = p.binary(ast.OpOr, left, right)
	}
	return left
}

func (p *parser) parseAnd() ast.Expr {
	left := p.parseEquality()
	if left == nil {
		return nil
	}
	for p.peek() == lexer.TokAndAnd {
		p.advance()
		right := p.parseEquality()
		if right == nil {
			return nil
		}
		left = p.binary(ast.OpAnd, left, right)
	}
	return left
}

func (p *parser) parseEquality() ast.Expr {
	left := p.parseComparison()
	if left == nil {
		return nil
	}
	var op ast.BinaryOp
	switch p.peek() {
	case lexer.TokEqEq:
		op = ast.OpEqEq
	case lexer.TokBangEq:
		op = ast.OpNeq
	default:
		return left
	}
	p.advance()
	right := p.parseComparison()
	if right == nil {
		return nil
	}
	return p.binary(op, left, right)
}

func (p *parser) parseComparison() ast.Expr {
	left := p.parseUpdate()
	if left == nil {
		return nil
	}
	var op ast.BinaryOp
	switch p.peek() {
	case lexer.TokLt:
		op = ast.OpLt
	case lexer.TokLtEq:
		op = ast.OpLtEq
	case lexer.TokGt:
		op = ast.OpGt
	case lexer.TokGtEq:
		op = ast.OpGtEq
	default:
		return left
	}
	p.advance()
	right := p.parseUpdate()
	if right == nil {
		return nil
	}
	return p.binary(op, left, right)
}

// parseUpdate: a // b (right associative)
func (p *parser) parseUpdate() ast.Expr {
	left := p.parseNot()
	if left == nil {
		return nil
	}
	if p.peek() == lexer.TokUpdate {
		p.advance()
		right := p.parseUpdate()
		if right == nil {
			return nil
		}
		return p.binary(ast.OpUpdate, left, right)
	}
	return left
}

func (p *parser) parseNot() ast.Expr {
	if p.peek() == lexer.TokBang {
		start := p.advance()
		operand := p.parseNot()
		if operand == nil {
			return nil
		}
		return &ast.UnaryExpr{Span: p.spanFromTo(start.Span, operand.NodeSpan()), Op: ast.OpNot, Operand: operand}
	}
	return p.parseAdditive()
}

func (p *parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	if left == nil {
		return nil
	}
	for p.peek() == lexer.TokPlus || p.peek() == lexer.TokMinus {
		op := ast.OpAdd
		if p.advance().Type == lexer.TokMinus {
			op = ast.OpSub
		}
		right := p.parseMultiplicative()
		if right == nil {
			return nil
		}
		left = p.binary(op, left, right)
	}
	return left
}

func (p *parser) parseMultiplicative() ast.Expr {
	left := p.parseConcat()
	if left == nil {
		return nil
	}
	for p.peek() == lexer.TokStar || p.peek() == lexer.TokSlash {
		op := ast.OpMul
		if p.advance().Type == lexer.TokSlash {
			op = ast.OpDiv
		}
		right := p.parseConcat()
		if right == nil {
			return nil
		}
		left = p.binary(op, left, right)
	}
	return left
}

// parseConcat: a ++ b (right associative)
func (p *parser) parseConcat() ast.Expr {
	left := p.parseHasAttr()
	if left == nil {
		return nil
	}
	if p.peek() == lexer.TokConcat {
		p.advance()
		right := p.parseConcat()
		if right == nil {
			return nil
		}
		return p.binary(ast.OpConcat, left, right)
	}
	return left
}

func (p *parser) parseHasAttr() ast.Expr {
	base := p.parseNegation()
	if base == nil {
		return nil
	}
	for p.peek() == lexer.TokQuestion {
		p.advance()
		path := p.parseAttrPath()
		if path == nil {
			return nil
		}
		base = &ast.HasAttr{Span: p.spanFromTo(base.NodeSpan(), p.prev()), Base: base, Path: path}
	}
	return base
}

func (p *parser) parseNegation() ast.Expr {
	if p.peek() == lexer.TokMinus {
		start := p.advance()
		operand := p.parseNegation()
		if operand == nil {
			return nil
		}
		return &ast.UnaryExpr{Span: p.spanFromTo(start.Span, operand.NodeSpan()), Op: ast.OpNeg, Operand: operand}
	}
	return p.parseApply()
}

func (p *parser) parseApply() ast.Expr {
	fn := p.parseSelect()
	if fn == nil {
		return nil
	}
	for startsSimple(p.peek()) {
		arg := p.parseSelect()
		if arg == nil {
			return nil
		}
		fn = &ast.Apply{Span: p.spanFromTo(fn.NodeSpan(), arg.NodeSpan()), Fn: fn, Arg: arg}
	}
	return fn
}

func (p *parser) parseSelect() ast.Expr {
	base := p.parseSimple()
	if base == nil {
		return nil
	}
	if p.peek() != lexer.TokDot {
		return base
	}
	p.advance()
	path := p.parseAttrPath()
	if path == nil {
		return nil
	}
	sel := &ast.Select{Base: base, Path: path}
	if p.peek() == lexer.TokOr {
		p.advance()
		if sel.Default = p.parseSelect(); sel.Default == nil {
			return nil
		}
	}
	sel.Span = p.spanFromTo(base.NodeSpan(), p.prev())
	return sel
}

// --- Simple expressions ---

func (p *parser) parseSimple() ast.Expr {
	tok := p.current()
	switch tok.Type {
	case lexer.TokIntLit:
		p.advance()
		v, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid integer '%s'", tok.Value), &tok.Span)
			return nil
		}
		return &ast.IntLiteral{Span: tok.Span, Value: v}
	case lexer.TokFloatLit:
		p.advance()
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid float '%s'", tok.Value), &tok.Span)
			return nil
		}
		return &ast.FloatLiteral{Span: tok.Span, Value: v}
	case lexer.TokStringLit:
		p.advance()
		if lit := p.stringLiteral(tok); lit != nil {
			return lit
		}
		return nil
	case lexer.TokPathLit:
		p.advance()
		return &ast.PathLiteral{Span: tok.Span, Value: tok.Value}
	case lexer.TokIdent:
		p.advance()
		return &ast.Var{Span: tok.Span, Name: tok.Value}
	case lexer.TokLParen:
		p.advance()
		inner := p.parseExpr()
		if inner == nil {
			return nil
		}
		if _, ok := p.expect(lexer.TokRParen); !ok {
			return nil
		}
		return inner
	case lexer.TokRec:
		p.advance()
		set := p.parseAttrSet()
		if set == nil {
			return nil
		}
		set.Rec = true
		set.Span = p.spanFromTo(tok.Span, set.Span)
		return set
	case lexer.TokLBrace:
		if set := p.parseAttrSet(); set != nil {
			return set
		}
		return nil
	case lexer.TokLBracket:
		return p.parseList()
	}
	p.addError(fmt.Sprintf("unexpected %s", describe(tok)), &tok.Span)
	return nil
}

func (p *parser) stringLiteral(tok lexer.Token) *ast.StrLiteral {
	lit := &ast.StrLiteral{Span: tok.Span}
	for _, part := range tok.Parts {
		if part.Tokens == nil {
			lit.Parts = append(lit.Parts, ast.StrPart{Text: part.Text})
			continue
		}
		expr := p.subParse(part.Tokens, part.Span)
		if expr == nil {
			return nil
		}
		lit.Parts = append(lit.Parts, ast.StrPart{Expr: expr})
	}
	return lit
}

// subParse parses the token stream of an interpolation.
func (p *parser) subParse(tokens []lexer.Token, span ast.Span) ast.Expr {
	if len(tokens) == 1 {
		p.addError("empty interpolation", &span)
		return nil
	}
	sub := &parser{tokens: tokens}
	expr := sub.parseTop()
	p.diags = append(p.diags, sub.diags...)
	return expr
}

func (p *parser) parseList() ast.Expr {
	start := p.advance() // consume '['
	list := &ast.ListExpr{}
	for p.peek() != lexer.TokRBracket {
		if p.peek() == lexer.TokEOF {
			tok := p.current()
			p.addError("unterminated list, expected ']'", &tok.Span)
			return nil
		}
		el := p.parseSelect()
		if el == nil {
			return nil
		}
		list.Elements = append(list.Elements, el)
	}
	end := p.advance()
	list.Span = p.spanFromTo(start.Span, end.Span)
	return list
}

func (p *parser) parseAttrSet() *ast.AttrSet {
	start, ok := p.expect(lexer.TokLBrace)
	if !ok {
		return nil
	}
	set := &ast.AttrSet{}
	bs := p.parseBindings(lexer.TokRBrace, true)
	if bs == nil {
		return nil
	}
	end, ok := p.expect(lexer.TokRBrace)
	if !ok {
		return nil
	}
	set.Bindings = bs.bindings
	set.Span = p.spanFromTo(start.Span, end.Span)
	return set
}

// --- Attribute paths ---

func (p *parser) parseAttrPath() []ast.AttrName {
	var path []ast.AttrName
	for {
		name, ok := p.parseAttrName()
		if !ok {
			return nil
		}
		path = append(path, name)
		if p.peek() != lexer.TokDot {
			return path
		}
		p.advance()
	}
}

func (p *parser) parseAttrName() (ast.AttrName, bool) {
	tok := p.current()
	switch tok.Type {
	case lexer.TokIdent, lexer.TokOr:
		p.advance()
		return ast.AttrName{Span: tok.Span, Name: tok.Value}, true
	case lexer.TokStringLit:
		p.advance()
		lit := p.stringLiteral(tok)
		if lit == nil {
			return ast.AttrName{}, false
		}
		if s, ok := lit.Constant(); ok {
			return ast.AttrName{Span: tok.Span, Name: s}, true
		}
		return ast.AttrName{Span: tok.Span, Dynamic: lit}, true
	case lexer.TokInterpStart:
		p.advance()
		expr := p.parseExpr()
		if expr == nil {
			return ast.AttrName{}, false
		}
		end, ok := p.expect(lexer.TokRBrace)
		if !ok {
			return ast.AttrName{}, false
		}
		return ast.AttrName{Span: p.spanFromTo(tok.Span, end.Span), Dynamic: expr}, true
	}
	p.addError(fmt.Sprintf("expected attribute name, got %s", describe(tok)), &tok.Span)
	return ast.AttrName{}, false
}

// --- Bindings ---

// bindingSet accumulates the bindings of one attribute set or let block,
// merging `a.b = …; a.c = …;` into a single nested set.
type bindingSet struct {
	bindings []ast.Binding
	names    map[string]*bindingSet // nil value: name bound, not mergeable
	target   *ast.AttrSet           // set whose Bindings mirror this one
}

func newBindingSet(target *ast.AttrSet) *bindingSet {
	return &bindingSet{names: map[string]*bindingSet{}, target: target}
}

func (bs *bindingSet) add(b ast.Binding) {
	bs.bindings = append(bs.bindings, b)
	if bs.target != nil {
		bs.target.Bindings = bs.bindings
	}
}

// mergeable wraps an attribute-set literal so later paths can extend it.
func mergeable(set *ast.AttrSet) *bindingSet {
	bs := newBindingSet(set)
	bs.bindings = set.Bindings
	for _, b := range set.Bindings {
		switch b := b.(type) {
		case *ast.AttrBinding:
			if b.Path[0].Static() {
				bs.names[b.Path[0].Name] = nestedFor(b.Value)
			}
		case *ast.Inherit:
			for _, n := range b.Names {
				bs.names[n.Name] = nil
			}
		}
	}
	return bs
}

func nestedFor(value ast.Expr) *bindingSet {
	if set, ok := value.(*ast.AttrSet); ok && !set.Rec {
		return mergeable(set)
	}
	return nil
}

func (p *parser) parseBindings(end lexer.TokenType, allowDynamic bool) *bindingSet {
	bs := newBindingSet(nil)
	for p.peek() != end {
		if p.peek() == lexer.TokEOF {
			tok := p.current()
			p.addError(fmt.Sprintf("unexpected end of file, expected %s", tokenName(end)), &tok.Span)
			return nil
		}
		if p.peek() == lexer.TokInherit {
			if !p.parseInherit(bs) {
				return nil
			}
			continue
		}
		start := p.current().Span
		path := p.parseAttrPath()
		if path == nil {
			return nil
		}
		if !allowDynamic && !path[0].Static() {
			span := path[0].Span
			p.addError("dynamic attributes not allowed in let", &span)
			return nil
		}
		if _, ok := p.expect(lexer.TokEquals); !ok {
			return nil
		}
		value := p.parseExpr()
		if value == nil {
			return nil
		}
		if _, ok := p.expect(lexer.TokSemi); !ok {
			return nil
		}
		if !p.insert(bs, nil, path, value, p.spanFromTo(start, value.NodeSpan())) {
			return nil
		}
	}
	return bs
}

func (p *parser) parseInherit(bs *bindingSet) bool {
	start := p.advance() // consume 'inherit'
	inh := &ast.Inherit{}
	if p.peek() == lexer.TokLParen {
		p.advance()
		if inh.From = p.parseExpr(); inh.From == nil {
			return false
		}
		if _, ok := p.expect(lexer.TokRParen); !ok {
			return false
		}
	}
	for p.peek() != lexer.TokSemi {
		name, ok := p.parseAttrName()
		if !ok {
			return false
		}
		if !name.Static() {
			p.addError("dynamic attributes not allowed in inherit", &name.Span)
			return false
		}
		if _, dup := bs.names[name.Name]; dup {
			p.dupAttr([]string{name.Name}, name.Span)
			return false
		}
		bs.names[name.Name] = nil
		inh.Names = append(inh.Names, name)
	}
	end := p.advance() // consume ';'
	inh.Span = p.spanFromTo(start.Span, end.Span)
	bs.add(inh)
	return true
}

// insert adds `path = value` to bs, creating or extending nested sets for
// multi-segment paths.
func (p *parser) insert(bs *bindingSet, prefix []string, path []ast.AttrName, value ast.Expr, span ast.Span) bool {
	head := path[0]
	if !head.Static() {
		if len(path) > 1 {
			set := &ast.AttrSet{Span: span}
			if !p.insert(newBindingSet(set), nil, path[1:], value, span) {
				return false
			}
			value = set
		}
		bs.add(&ast.AttrBinding{Span: span, Path: []ast.AttrName{head}, Value: value})
		return true
	}

	full := append(append([]string{}, prefix...), head.Name)
	nested, exists := bs.names[head.Name]

	if len(path) == 1 {
		if exists {
			set, isSet := value.(*ast.AttrSet)
			if nested == nil || !isSet || set.Rec {
				p.dupAttr(full, head.Span)
				return false
			}
			for _, b := range set.Bindings {
				if !p.mergeBinding(nested, full, b) {
					return false
				}
			}
			return true
		}
		bs.names[head.Name] = nestedFor(value)
		bs.add(&ast.AttrBinding{Span: span, Path: []ast.AttrName{head}, Value: value})
		return true
	}

	if exists {
		if nested == nil {
			p.dupAttr(full, head.Span)
			return false
		}
		return p.insert(nested, full, path[1:], value, span)
	}
	set := &ast.AttrSet{Span: span}
	nested = newBindingSet(set)
	bs.names[head.Name] = nested
	bs.add(&ast.AttrBinding{Span: span, Path: []ast.AttrName{head}, Value: set})
	return p.insert(nested, full, path[1:], value, span)
}

func (p *parser) mergeBinding(bs *bindingSet, prefix []string, b ast.Binding) bool {
	switch b := b.(type) {
	case *ast.AttrBinding:
		return p.insert(bs, prefix, b.Path, b.Value, b.Span)
	case *ast.Inherit:
		for _, n := range b.Names {
			if _, dup := bs.names[n.Name]; dup {
				p.dupAttr(append(append([]string{}, prefix...), n.Name), n.Span)
				return false
			}
			bs.names[n.Name] = nil
		}
		bs.add(b)
	}
	return true
}

func (p *parser) dupAttr(path []string, span ast.Span) {
	p.diags = append(p.diags, diagnostics.MakeDiag(
		diagnostics.EDupAttr,
		fmt.Sprintf("attribute '%s' already defined", strings.Join(path, ".")),
		&span,
		"",
	))
}
