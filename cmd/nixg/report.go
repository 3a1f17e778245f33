package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/graph"
	"github.com/ConnorBaker/nix-sub005/pkg/graph/classify"
	"github.com/ConnorBaker/nix-sub005/pkg/runtime"
)

// Exit codes.
const (
	exitUsage    = 1
	exitParse    = 2
	exitDeclined = 3
	exitEval     = 4
	exitAssert   = 5
)

// exitError carries a process exit code. Its message has already been
// reported when err is nil.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var (
	errorStyle = color.New(color.FgRed, color.Bold)
	warnStyle  = color.New(color.FgYellow, color.Bold)
	arrowStyle = color.New(color.FgBlue)
	hintStyle  = color.New(color.FgCyan)
)

// printDiagnostics writes diags to w, as JSON or in the human layout.
func printDiagnostics(w io.Writer, diags []diagnostics.Diagnostic, asJSON bool) {
	if asJSON {
		fmt.Fprintln(w, diagnostics.FormatDiagnostics(diags, false))
		return
	}
	for i, d := range diags {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printDiagnostic(w, d)
	}
}

func printDiagnostic(w io.Writer, d diagnostics.Diagnostic) {
	loc := "<unknown>"
	if d.Span != nil {
		loc = d.Span.String()
	}
	errorStyle.Fprintf(w, "error[%s]", d.Code)
	fmt.Fprintf(w, ": %s\n", d.Message)
	arrowStyle.Fprint(w, "  --> ")
	fmt.Fprintln(w, loc)
	if d.Hint != "" {
		hintStyle.Fprint(w, "  hint: ")
		fmt.Fprintln(w, d.Hint)
	}
}

// reportError prints err and maps it to an exit code.
func reportError(w io.Writer, err error, asJSON bool) error {
	var de *runtime.DiagnosticError
	if errors.As(err, &de) {
		printDiagnostics(w, de.Diagnostics, asJSON)
		return &exitError{code: exitParse}
	}

	var ee *diagnostics.EvalError
	if errors.As(err, &ee) {
		printDiagnostics(w, []diagnostics.Diagnostic{ee.Diagnostic()}, asJSON)
		if ee.Code == diagnostics.EAssert {
			return &exitError{code: exitAssert}
		}
		return &exitError{code: exitEval}
	}
	if errors.Is(err, runtime.ErrDeclined) {
		printDiagnostics(w, []diagnostics.Diagnostic{
			diagnostics.MakeDiag(diagnostics.EUnsupported, err.Error(), nil, "run `"+appName+" check` to see why, or use --engine auto"),
		}, asJSON)
		return &exitError{code: exitDeclined}
	}
	errorStyle.Fprint(w, "error")
	fmt.Fprintf(w, ": %s\n", err)
	return &exitError{code: exitEval}
}

// printRejections lists why the graph engine declines a program.
func printRejections(w io.Writer, err error) {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		warnStyle.Fprint(w, "declined")
		fmt.Fprintf(w, ": %s\n", err)
		return
	}
	for _, e := range merr.Errors {
		var rej *classify.Rejection
		warnStyle.Fprint(w, "declined")
		if errors.As(e, &rej) && rej.Span.File != "" {
			fmt.Fprintf(w, ": %s\n", rej.Reason)
			arrowStyle.Fprint(w, "  --> ")
			fmt.Fprintln(w, rej.Span.String())
			continue
		}
		fmt.Fprintf(w, ": %s\n", e)
	}
}

// printStats writes the engine counters accumulated by this process.
func printStats(w io.Writer, s graph.Stats) {
	fmt.Fprintf(w, "graph: attempts=%d successes=%d fallbacks=%d errors=%d flattenings=%d\n",
		s.Attempts, s.Successes, s.Fallbacks, s.Errors, s.Flattenings)
}

// printMetrics writes the counters gathered from g, one sample per line.
func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	var lines []string
	for _, f := range families {
		for _, m := range f.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			suffix := ""
			if len(labels) > 0 {
				suffix = "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s%s %g", f.GetName(), suffix, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				lines = append(lines, fmt.Sprintf("%s_count%s %d", f.GetName(), suffix, h.GetSampleCount()))
				lines = append(lines, fmt.Sprintf("%s_sum%s %g", f.GetName(), suffix, h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	return nil
}
