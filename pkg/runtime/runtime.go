// Package runtime provides the top-level orchestrator: parse, offer the
// expression to the graph engine, and fall back to the reference evaluator.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/builtins"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/evaluator"
	"github.com/ConnorBaker/nix-sub005/pkg/formatter"
	"github.com/ConnorBaker/nix-sub005/pkg/graph"
	"github.com/ConnorBaker/nix-sub005/pkg/parser"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// Mode selects which engines Run may use.
type Mode string

const (
	// ModeAuto tries the graph engine and falls back to the reference
	// evaluator when it declines.
	ModeAuto Mode = "auto"
	// ModeGraph uses the graph engine only; a decline is an error.
	ModeGraph Mode = "graph"
	// ModeReference uses the reference evaluator only.
	ModeReference Mode = "reference"
)

// ParseMode parses a mode name. The empty string means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeGraph, ModeReference:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown engine mode %q (want auto, graph or reference)", s)
}

// Engine names reported in Result.
const (
	EngineGraph     = "graph"
	EngineReference = "reference"
)

// DefaultMaxExprDepth bounds the nesting of expressions offered to the
// graph engine.
const DefaultMaxExprDepth = 10000

// ErrDeclined is returned in ModeGraph when the graph engine declines.
var ErrDeclined = errors.New("graph engine declined the expression")

// Result holds the outcome of a program evaluation.
type Result struct {
	Value value.Value
	// Engine names the engine that produced Value.
	Engine string
}

// Runtime wires the parser, the graph engine and the reference evaluator.
type Runtime struct {
	mode         Mode
	log          logr.Logger
	builtins     *builtins.Registry
	maxExprDepth int
	maxCallDepth int
	strict       bool
	engineOpts   []graph.Option
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithEngineMode selects the engines Run may use.
func WithEngineMode(m Mode) Option {
	return func(rt *Runtime) {
		rt.mode = m
	}
}

// WithLogger sets the logger shared by all components.
func WithLogger(log logr.Logger) Option {
	return func(rt *Runtime) {
		rt.log = log
	}
}

// WithBuiltins replaces the builtins registry.
func WithBuiltins(r *builtins.Registry) Option {
	return func(rt *Runtime) {
		rt.builtins = r
	}
}

// WithMaxExprDepth sets the deepest expression offered to the graph
// engine. Deeper ones go straight to the reference evaluator.
func WithMaxExprDepth(n int) Option {
	return func(rt *Runtime) {
		rt.maxExprDepth = n
	}
}

// WithMaxCallDepth bounds nested calls in the reference evaluator.
func WithMaxCallDepth(n int) Option {
	return func(rt *Runtime) {
		rt.maxCallDepth = n
	}
}

// WithStrict makes Run force the whole result, so errors hidden in
// unevaluated attributes and list elements are reported by Run itself.
func WithStrict(strict bool) Option {
	return func(rt *Runtime) {
		rt.strict = strict
	}
}

// WithEngineOptions passes extra options to the graph engine.
func WithEngineOptions(opts ...graph.Option) Option {
	return func(rt *Runtime) {
		rt.engineOpts = append(rt.engineOpts, opts...)
	}
}

// New creates a new Runtime with the given options.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		mode:         ModeAuto,
		log:          logr.Discard(),
		maxExprDepth: DefaultMaxExprDepth,
		maxCallDepth: evaluator.DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.builtins == nil {
		rt.builtins = builtins.Defaults(rt.log)
	}
	return rt
}

// Run parses and evaluates a program.
func (rt *Runtime) Run(ctx context.Context, source, filename string) (*Result, error) {
	expr, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return nil, &DiagnosticError{Diagnostics: diags}
	}
	return rt.Eval(ctx, expr)
}

// Eval evaluates a parsed expression in a fresh root environment.
func (rt *Runtime) Eval(ctx context.Context, expr ast.Expr) (*Result, error) {
	env := builtins.BaseEnv(rt.builtins)
	ev := evaluator.New(
		evaluator.WithLogger(rt.log),
		evaluator.WithMaxCallDepth(rt.maxCallDepth),
		evaluator.WithContext(ctx),
	)

	res, err := rt.tryGraph(expr, env, ev)
	if err != nil || res == nil {
		if err == nil && rt.mode == ModeGraph {
			err = ErrDeclined
		}
		if err != nil {
			return nil, err
		}
		v, err := ev.Eval(expr, env)
		if err != nil {
			return nil, err
		}
		res = &Result{Value: v, Engine: EngineReference}
	}

	if rt.strict {
		if err := value.ForceDeep(res.Value); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// tryGraph offers expr to the graph engine. A nil result with a nil error
// means the engine was skipped or declined.
func (rt *Runtime) tryGraph(expr ast.Expr, env *value.Env, ev *evaluator.Evaluator) (*Result, error) {
	if rt.mode == ModeReference {
		return nil, nil
	}
	if rt.maxExprDepth > 0 {
		if depth := ast.Depth(expr); depth > rt.maxExprDepth {
			rt.log.V(1).Info("expression too deep for the graph engine", "depth", depth, "limit", rt.maxExprDepth)
			return nil, nil
		}
	}
	opts := append([]graph.Option{graph.WithLogger(rt.log), graph.WithFallback(ev.Eval)}, rt.engineOpts...)
	var out value.Value
	ok, err := graph.New(opts...).TryEvaluate(expr, env, &out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Result{Value: out, Engine: EngineGraph}, nil
}

// Check parses a program and reports why the graph engine would decline
// it. The error is nil when the engine admits the program.
func (rt *Runtime) Check(source, filename string) ([]diagnostics.Diagnostic, error) {
	expr, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return diags, nil
	}
	return nil, graph.New(graph.WithLogger(rt.log)).Explain(expr)
}

// Format parses and pretty-prints a program.
func (rt *Runtime) Format(source, filename string) (string, error) {
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return "", &DiagnosticError{Diagnostics: diags}
	}
	return formatter.Format(program), nil
}

// DiagnosticError wraps diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}
