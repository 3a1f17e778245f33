package evaluator

import (
	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
)

// DefaultMaxCallDepth bounds nested function applications.
const DefaultMaxCallDepth = 10000

// Budget holds the resource limits for an evaluation.
type Budget struct {
	MaxCallDepth int
}

// BudgetTracker tracks resource consumption during evaluation.
type BudgetTracker struct {
	CallDepth int
	Calls     int64
}

func (ev *Evaluator) enter(span ast.Span) error {
	if ev.ctx != nil {
		if err := ev.ctx.Err(); err != nil {
			return err
		}
	}
	if ev.budget.MaxCallDepth > 0 && ev.tracker.CallDepth >= ev.budget.MaxCallDepth {
		ev.log.V(1).Info("call depth exceeded", "limit", ev.budget.MaxCallDepth, "at", span.String())
		return diagnostics.Errorf(diagnostics.ECallDepth, span, "stack overflow; max-call-depth exceeded")
	}
	ev.tracker.CallDepth++
	ev.tracker.Calls++
	return nil
}

func (ev *Evaluator) leave() {
	ev.tracker.CallDepth--
}
