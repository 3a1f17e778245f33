// Package diagnostics defines diagnostic types for parse and evaluation errors.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
)

// Diagnostic code constants.
const (
	ELex               = "E_LEX"
	EParse             = "E_PARSE"
	EDupAttr           = "E_DUP_ATTR"
	EUndefinedVar      = "E_UNDEFINED_VAR"
	EMissingAttr       = "E_MISSING_ATTR"
	EType              = "E_TYPE"
	ENotFunction       = "E_NOT_FUNCTION"
	EAssert            = "E_ASSERT"
	EInfiniteRecursion = "E_INFINITE_RECURSION"
	EOverflow          = "E_OVERFLOW"
	EDivZero           = "E_DIV_ZERO"
	EThrow             = "E_THROW"
	EAbort             = "E_ABORT"
	EArgs              = "E_ARGS"
	ECallDepth         = "E_CALL_DEPTH"
	EUnsupported       = "E_UNSUPPORTED"
	ECoerce            = "E_COERCE"
)

// Diagnostic represents a parse or evaluation diagnostic.
type Diagnostic struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Span    *ast.Span `json:"span,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Span:    span,
		Hint:    hint,
	}
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := "<unknown>"
	if d.Span != nil {
		loc = d.Span.String()
	}
	out := fmt.Sprintf("error[%s]: %s\n  --> %s", d.Code, d.Message, loc)
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}
