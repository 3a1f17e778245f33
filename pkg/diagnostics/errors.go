package diagnostics

import (
	"fmt"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
)

// EvalError is an evaluation error raised by either evaluation engine.
// Both engines build these through the constructors below so that a program
// fails with the same code and message whichever engine ran it.
type EvalError struct {
	Code    string
	Message string
	Span    *ast.Span
}

func (e *EvalError) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s (at %s)", e.Message, e.Span)
	}
	return e.Message
}

// Diagnostic converts the error for display alongside parse diagnostics.
func (e *EvalError) Diagnostic() Diagnostic {
	return MakeDiag(e.Code, e.Message, e.Span, "")
}

func spanPtr(span ast.Span) *ast.Span {
	if span == (ast.Span{}) {
		return nil
	}
	return &span
}

// Errorf builds an EvalError with a formatted message.
func Errorf(code string, span ast.Span, format string, args ...any) *EvalError {
	return &EvalError{Code: code, Message: fmt.Sprintf(format, args...), Span: spanPtr(span)}
}

// UndefinedVar reports a variable bound nowhere in scope.
func UndefinedVar(name string, span ast.Span) *EvalError {
	return Errorf(EUndefinedVar, span, "undefined variable '%s'", name)
}

// MissingAttr reports a selection of an absent attribute.
func MissingAttr(name string, span ast.Span) *EvalError {
	return Errorf(EMissingAttr, span, "attribute '%s' missing", name)
}

// TypeMismatch reports a value of the wrong type. got and want are phrases
// such as "an integer" or "a set".
func TypeMismatch(got, want string, span ast.Span) *EvalError {
	return Errorf(EType, span, "value is %s while %s was expected", got, want)
}

// NotAFunction reports an application whose head is not a function.
func NotAFunction(got string, span ast.Span) *EvalError {
	return Errorf(ENotFunction, span, "attempt to call something which is not a function but %s", got)
}

// AssertionFailed reports a false assertion condition.
func AssertionFailed(span ast.Span) *EvalError {
	return Errorf(EAssert, span, "assertion failed")
}

// InfiniteRecursion reports a thunk that demanded its own value.
func InfiniteRecursion() *EvalError {
	return &EvalError{Code: EInfiniteRecursion, Message: "infinite recursion encountered"}
}

// Overflow reports integer overflow in an arithmetic operation.
func Overflow(op string, a, b int64, span ast.Span) *EvalError {
	return Errorf(EOverflow, span, "integer overflow in %s %d and %d", op, a, b)
}
