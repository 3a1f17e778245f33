// Package graph is the entry point of the graph-reduction engine.
//
// An Engine takes an expression and a host environment, and either
// produces the value the reference evaluator would produce, reports the
// evaluation error it would report, or declines so the caller can use the
// reference evaluator instead.
package graph

import (
	"errors"
	"time"

	"github.com/go-logr/logr"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/evaluator"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/classify"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/compile"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/machine"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/term"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// Decline reasons, as reported in logs and the fallbacks metric.
const (
	ReasonNil            = "nil"
	ReasonClassifier     = "classifier"
	ReasonCompile        = "compile"
	ReasonUnsupported    = "unsupported"
	ReasonNotExtractable = "not_extractable"
)

// Engine evaluates admitted expressions by graph reduction. An Engine
// holds configuration only and may be shared; each TryEvaluate builds its
// own graph and machine.
type Engine struct {
	log      logr.Logger
	metrics  *GraphMetrics
	fallback machine.Fallback
	maxSteps int64
	maxDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Declines and flattenings are logged at V(1).
func WithLogger(log logr.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics records into m instead of the package-level Metrics.
func WithMetrics(m *GraphMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithFallback sets the host evaluator used by cells forced after
// extraction. It defaults to a reference evaluator.
func WithFallback(fb machine.Fallback) Option {
	return func(e *Engine) { e.fallback = fb }
}

// WithMaxSteps bounds the reduction steps of one evaluation.
func WithMaxSteps(n int64) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithMaxDepth bounds nested reductions.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:      logr.Discard(),
		metrics:  Metrics,
		maxSteps: machine.DefaultMaxSteps,
		maxDepth: machine.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fallback == nil {
		e.fallback = evaluator.New(evaluator.WithLogger(e.log)).Eval
	}
	return e
}

// CanEvaluate reports whether the engine admits expr. It depends on the
// syntax alone.
func (e *Engine) CanEvaluate(expr ast.Expr) bool {
	return classify.CanEvaluate(expr)
}

// Explain returns why expr is not admitted, or nil.
func (e *Engine) Explain(expr ast.Expr) error {
	return classify.Explain(expr)
}

// TryEvaluate evaluates expr in env. It returns true after writing the
// value to out; false with a nil error when it declines; and false with
// the evaluation error when an admitted expression fails. out is only
// written on success.
func (e *Engine) TryEvaluate(expr ast.Expr, env *value.Env, out *value.Value) (bool, error) {
	start := time.Now()
	counters.attempts.Add(1)
	e.metrics.ObserveAttempt()

	if expr == nil {
		return e.decline(ReasonNil, start, nil)
	}
	if err := classify.Explain(expr); err != nil {
		return e.decline(ReasonClassifier, start, err)
	}

	g := term.New()
	root, err := compile.Compile(g, expr, env)
	if err != nil {
		return e.decline(ReasonCompile, start, err)
	}

	m := machine.New(g, env,
		machine.WithLogger(e.log),
		machine.WithFallback(e.fallback),
		machine.WithMaxSteps(e.maxSteps),
		machine.WithMaxDepth(e.maxDepth),
		machine.WithFlattenHook(e.flattened),
	)
	head, err := m.Eval(root)
	if err != nil {
		if errors.Is(err, machine.ErrUnsupported) {
			return e.decline(ReasonUnsupported, start, err)
		}
		counters.errors.Add(1)
		e.metrics.ObserveResult(time.Since(start).Seconds(), err)
		return false, err
	}

	v, err := m.Extract(head)
	if err != nil {
		if errors.Is(err, machine.ErrNotExtractable) {
			return e.decline(ReasonNotExtractable, start, err)
		}
		return e.decline(ReasonUnsupported, start, err)
	}
	m.Detach()
	*out = v

	counters.successes.Add(1)
	e.metrics.ObserveResult(time.Since(start).Seconds(), nil)
	e.log.V(1).Info("graph evaluation succeeded", "nodes", g.Len(), "steps", m.Steps())
	return true, nil
}

func (e *Engine) decline(reason string, start time.Time, cause error) (bool, error) {
	counters.fallbacks.Add(1)
	e.metrics.ObserveFallback(reason, time.Since(start).Seconds())
	if cause != nil {
		e.log.V(1).Info("graph engine declined", "reason", reason, "detail", cause.Error())
	} else {
		e.log.V(1).Info("graph engine declined", "reason", reason)
	}
	return false, nil
}

func (e *Engine) flattened() {
	counters.flattenings.Add(1)
	e.metrics.ObserveFlattening()
}
