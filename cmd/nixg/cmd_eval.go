package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ConnorBaker/nix-sub005/pkg/formatter"
	"github.com/ConnorBaker/nix-sub005/pkg/graph"
	"github.com/ConnorBaker/nix-sub005/pkg/runtime"
)

type evalFlags struct {
	expr         string
	output       string
	strict       bool
	maxExprDepth int
	maxCallDepth int
	stats        bool
	metrics      bool
}

func newEvalCmd(c *cli) *cobra.Command {
	var f evalFlags
	cmd := &cobra.Command{
		Use:   "eval [file | -]",
		Short: "Evaluate a program and print its value",
		Example: "  " + appName + " eval config.nix\n" +
			"  " + appName + " eval -E '{ a = 1; } // { b = 2; }' -o json\n" +
			"  echo '[ 1 2 ]' | " + appName + " eval -",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.eval(cmd, args, &f)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.expr, "expr", "E", "", "evaluate this expression instead of a file")
	flags.StringVarP(&f.output, "output", "o", "", "output format: nix, json or yaml")
	flags.BoolVar(&f.strict, "strict", false, "force the whole result before printing")
	flags.IntVar(&f.maxExprDepth, "max-expr-depth", 0, "deepest expression offered to the graph engine")
	flags.IntVar(&f.maxCallDepth, "max-call-depth", 0, "nested call limit of the reference evaluator")
	flags.BoolVar(&f.stats, "stats", false, "print graph engine counters to stderr")
	flags.BoolVar(&f.metrics, "metrics", false, "print graph engine metrics to stderr")
	return cmd
}

func (c *cli) eval(cmd *cobra.Command, args []string, f *evalFlags) error {
	cfg := c.cfg
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = f.output
	}
	if flags.Changed("strict") {
		cfg.Strict = f.strict
	}
	if flags.Changed("max-expr-depth") {
		cfg.MaxExprDepth = f.maxExprDepth
	}
	if flags.Changed("max-call-depth") {
		cfg.MaxCallDepth = f.maxCallDepth
	}
	if err := cfg.validate(); err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	format, err := formatter.ParseFormat(cfg.Output)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	var source, filename string
	switch {
	case flags.Changed("expr") && len(args) > 0:
		return &exitError{code: exitUsage, err: fmt.Errorf("--expr and a file argument are mutually exclusive")}
	case flags.Changed("expr"):
		source, filename = f.expr, "<expr>"
	case len(args) == 1:
		if source, filename, err = c.readSource(args[0]); err != nil {
			return err
		}
	default:
		return &exitError{code: exitUsage, err: fmt.Errorf("expected a file, '-' or --expr")}
	}

	var registry *prometheus.Registry
	if f.metrics {
		registry = prometheus.NewRegistry()
		graph.Metrics.MustRegister(registry)
	}
	before := graph.GetStats()

	rt := runtime.New(append(cfg.runtimeOptions(), runtime.WithLogger(c.log))...)
	res, err := rt.Run(context.Background(), source, filename)
	defer c.report(f, registry, before)
	if err != nil {
		return reportError(c.stderr, err, c.jsonDiags)
	}
	c.log.V(1).Info("evaluated", "file", filename, "engine", res.Engine)

	out, err := formatter.Render(res.Value, format)
	if err != nil {
		return reportError(c.stderr, err, c.jsonDiags)
	}
	fmt.Fprintln(c.stdout, strings.TrimRight(out, "\n"))
	return nil
}

func (c *cli) report(f *evalFlags, registry *prometheus.Registry, before graph.Stats) {
	if f.stats {
		printStats(c.stderr, graph.GetStats().Sub(before))
	}
	if registry != nil {
		if err := printMetrics(c.stderr, registry); err != nil {
			c.log.Error(err, "printing metrics")
		}
	}
}
