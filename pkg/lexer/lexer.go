// Package lexer implements the tokenizer for the configuration language.
package lexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
)

// TokenType identifies the type of a lexer token.
type TokenType int

const (
	// Keywords
	TokLet TokenType = iota
	TokIn
	TokRec
	TokWith
	TokAssert
	TokIf
	TokThen
	TokElse
	TokInherit
	TokOr

	// Literals
	TokIntLit
	TokFloatLit
	TokStringLit
	TokPathLit

	// Identifiers
	TokIdent

	// Punctuation
	TokLBrace      // {
	TokRBrace      // }
	TokLBracket    // [
	TokRBracket    // ]
	TokLParen      // (
	TokRParen      // )
	TokSemi        // ;
	TokColon       // :
	TokComma       // ,
	TokDot         // .
	TokEllipsis    // ...
	TokEquals      // =
	TokAt          // @
	TokQuestion    // ?
	TokInterpStart // ${

	// Operators
	TokPlus    // +
	TokMinus   // -
	TokStar    // *
	TokSlash   // /
	TokConcat  // ++
	TokUpdate  // //
	TokEqEq    // ==
	TokBangEq  // !=
	TokLt      // <
	TokLtEq    // <=
	TokGt      // >
	TokGtEq    // >=
	TokAndAnd  // &&
	TokOrOr    // ||
	TokArrow   // ->
	TokBang    // !

	// Special
	TokEOF
)

// StrTokenPart is one piece of a string token: literal text, or the tokens
// of an interpolated expression (terminated by TokEOF).
type StrTokenPart struct {
	Text   string
	Tokens []Token
	Span   ast.Span
}

// Token represents a single lexer token.
type Token struct {
	Type  TokenType
	Value string
	Span  ast.Span
	Parts []StrTokenPart // TokStringLit only
}

var keywords = map[string]TokenType{
	"let":     TokLet,
	"in":      TokIn,
	"rec":     TokRec,
	"with":    TokWith,
	"assert":  TokAssert,
	"if":      TokIf,
	"then":    TokThen,
	"else":    TokElse,
	"inherit": TokInherit,
	"or":      TokOr,
}

// IsKeyword reports whether t is a keyword token.
func IsKeyword(t TokenType) bool {
	return t >= TokLet && t <= TokOr
}

type scanner struct {
	source   string
	filename string
	pos      int
	line     int
	col      int
}

func newScanner(source, filename string) *scanner {
	return &scanner{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.source)
}

func (s *scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.pos]
}

func (s *scanner) peekAt(offset int) byte {
	p := s.pos + offset
	if p >= len(s.source) {
		return 0
	}
	return s.source[p]
}

func (s *scanner) advance() byte {
	ch := s.source[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

func (s *scanner) advanceN(n int) {
	for i := 0; i < n; i++ {
		s.advance()
	}
}

func (s *scanner) span(startLine, startCol int) ast.Span {
	return ast.Span{
		File:      s.filename,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   s.line,
		EndCol:    s.col,
	}
}

func (s *scanner) skipWhitespaceAndComments() error {
	for !s.atEnd() {
		ch := s.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			s.advance()
		case ch == '#':
			for !s.atEnd() && s.peek() != '\n' {
				s.advance()
			}
		case ch == '/' && s.peekAt(1) == '*':
			startLine, startCol := s.line, s.col
			s.advanceN(2)
			for {
				if s.atEnd() {
					return s.lexError(startLine, startCol, "unterminated block comment")
				}
				if s.peek() == '*' && s.peekAt(1) == '/' {
					s.advanceN(2)
					break
				}
				s.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentChar(ch byte) bool {
	return isAlpha(ch) || isDigit(ch) || ch == '\'' || ch == '-'
}

func isPathChar(ch byte) bool {
	return isAlpha(ch) || isDigit(ch) || ch == '.' || ch == '-' || ch == '+'
}

// pathLength returns the length of a path literal starting at the current
// position, or 0 when there is none. A path needs at least one '/' followed
// by a path character.
func (s *scanner) pathLength() int {
	j := s.pos
	if s.peek() == '~' {
		if s.peekAt(1) != '/' {
			return 0
		}
		j++
	}
	for j < len(s.source) && isPathChar(s.source[j]) {
		j++
	}
	segments := 0
	for j+1 < len(s.source) && s.source[j] == '/' && isPathChar(s.source[j+1]) {
		j++
		for j < len(s.source) && isPathChar(s.source[j]) {
			j++
		}
		segments++
	}
	if segments == 0 {
		return 0
	}
	return j - s.pos
}

func (s *scanner) scanPath(n int) Token {
	startLine, startCol := s.line, s.col
	text := s.source[s.pos : s.pos+n]
	s.advanceN(n)
	return Token{Type: TokPathLit, Value: text, Span: s.span(startLine, startCol)}
}

func (s *scanner) scanString() (Token, error) {
	startLine, startCol := s.line, s.col
	startPos := s.pos
	s.advance() // consume opening "

	var parts []StrTokenPart
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			parts = append(parts, StrTokenPart{Text: buf.String()})
			buf.Reset()
		}
	}

	for !s.atEnd() {
		ch := s.peek()
		switch {
		case ch == '"':
			s.advance() // consume closing "
			flush()
			return Token{
				Type:  TokStringLit,
				Value: s.source[startPos:s.pos],
				Span:  s.span(startLine, startCol),
				Parts: parts,
			}, nil
		case ch == '\\':
			s.advance()
			if s.atEnd() {
				return Token{}, s.lexError(startLine, startCol, "unterminated string escape")
			}
			switch esc := s.advance(); esc {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			default:
				buf.WriteByte(esc)
			}
		case ch == '$' && s.peekAt(1) == '{':
			flush()
			interpLine, interpCol := s.line, s.col
			s.advanceN(2)
			toks, err := s.scanInterpolation(interpLine, interpCol)
			if err != nil {
				return Token{}, err
			}
			parts = append(parts, StrTokenPart{Tokens: toks, Span: s.span(interpLine, interpCol)})
		default:
			r, size := utf8.DecodeRuneInString(s.source[s.pos:])
			if r == utf8.RuneError && size == 1 {
				return Token{}, s.lexError(startLine, startCol, "invalid UTF-8 character in string")
			}
			buf.WriteString(s.source[s.pos : s.pos+size])
			s.advanceN(size)
		}
	}
	return Token{}, s.lexError(startLine, startCol, "unterminated string literal")
}

// scanInterpolation tokenizes the body of a `${ … }` up to its closing brace.
func (s *scanner) scanInterpolation(line, col int) ([]Token, error) {
	depth := 0
	var toks []Token
	for {
		tok, err := s.nextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokEOF:
			return nil, s.lexError(line, col, "unterminated interpolation")
		case TokLBrace, TokInterpStart:
			depth++
		case TokRBrace:
			if depth == 0 {
				return append(toks, Token{Type: TokEOF, Span: tok.Span}), nil
			}
			depth--
		}
		toks = append(toks, tok)
	}
}

func (s *scanner) scanNumber() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos
	isFloat := false

	for !s.atEnd() && isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekAt(1)) {
		isFloat = true
		s.advance()
		for !s.atEnd() && isDigit(s.peek()) {
			s.advance()
		}
	}
	if isFloat && (s.peek() == 'e' || s.peek() == 'E') {
		s.advance()
		if s.peek() == '+' || s.peek() == '-' {
			s.advance()
		}
		for !s.atEnd() && isDigit(s.peek()) {
			s.advance()
		}
	}

	tokType := TokIntLit
	if isFloat {
		tokType = TokFloatLit
	}
	return Token{
		Type:  tokType,
		Value: s.source[startPos:s.pos],
		Span:  s.span(startLine, startCol),
	}
}

func (s *scanner) scanIdentOrKeyword() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos

	for !s.atEnd() && isIdentChar(s.peek()) {
		s.advance()
	}

	text := s.source[startPos:s.pos]
	if tokType, ok := keywords[text]; ok {
		return Token{Type: tokType, Value: text, Span: s.span(startLine, startCol)}
	}
	return Token{Type: TokIdent, Value: text, Span: s.span(startLine, startCol)}
}

func (s *scanner) lexError(line, col int, msg string) error {
	diag := diagnostics.MakeDiag(
		diagnostics.ELex,
		msg,
		&ast.Span{File: s.filename, StartLine: line, StartCol: col, EndLine: line, EndCol: col + 1},
		"",
	)
	return &LexError{Diag: diag}
}

// LexError wraps a diagnostic for lex errors.
type LexError struct {
	Diag diagnostics.Diagnostic
}

func (e *LexError) Error() string {
	return e.Diag.Message
}

type opToken struct {
	text string
	typ  TokenType
}

// operators is ordered longest first so that the first match wins.
var operators = []opToken{
	{"...", TokEllipsis},
	{"${", TokInterpStart},
	{"++", TokConcat},
	{"//", TokUpdate},
	{"==", TokEqEq},
	{"!=", TokBangEq},
	{"<=", TokLtEq},
	{">=", TokGtEq},
	{"&&", TokAndAnd},
	{"||", TokOrOr},
	{"->", TokArrow},
	{"{", TokLBrace},
	{"}", TokRBrace},
	{"[", TokLBracket},
	{"]", TokRBracket},
	{"(", TokLParen},
	{")", TokRParen},
	{";", TokSemi},
	{":", TokColon},
	{",", TokComma},
	{".", TokDot},
	{"=", TokEquals},
	{"@", TokAt},
	{"?", TokQuestion},
	{"+", TokPlus},
	{"-", TokMinus},
	{"*", TokStar},
	{"/", TokSlash},
	{"<", TokLt},
	{">", TokGt},
	{"!", TokBang},
}

func (s *scanner) nextToken() (Token, error) {
	if err := s.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}

	if s.atEnd() {
		return Token{Type: TokEOF, Span: s.span(s.line, s.col)}, nil
	}

	ch := s.peek()
	startLine, startCol := s.line, s.col

	if isAlpha(ch) || isDigit(ch) || ch == '.' || ch == '/' || ch == '~' {
		if n := s.pathLength(); n > 0 {
			return s.scanPath(n), nil
		}
	}

	if isDigit(ch) {
		return s.scanNumber(), nil
	}
	if ch == '"' {
		return s.scanString()
	}
	if isAlpha(ch) {
		return s.scanIdentOrKeyword(), nil
	}

	rest := s.source[s.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			s.advanceN(len(op.text))
			return Token{Type: op.typ, Value: op.text, Span: s.span(startLine, startCol)}, nil
		}
	}

	s.advance()
	return Token{}, s.lexError(startLine, startCol, fmt.Sprintf("unexpected character '%c'", ch))
}

// Tokenize breaks source code into a slice of tokens ending with TokEOF.
func Tokenize(source, filename string) ([]Token, error) {
	s := newScanner(source, filename)
	var tokens []Token

	for {
		tok, err := s.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokEOF {
			break
		}
	}

	return tokens, nil
}
