package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ConnorBaker/nix-sub005/pkg/runtime"
)

func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file | ->",
		Short: "Parse a program and report whether the graph engine admits it",
		Long: "check parses a program and, when it is well formed, lists every construct\n" +
			"that keeps the graph engine from evaluating it. With --engine graph a\n" +
			"declined program exits with status 3.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, filename, err := c.readSource(args[0])
			if err != nil {
				return err
			}
			rt := runtime.New(runtime.WithLogger(c.log))
			diags, explain := rt.Check(source, filename)
			if len(diags) > 0 {
				printDiagnostics(c.stderr, diags, c.jsonDiags)
				return &exitError{code: exitParse}
			}
			if explain == nil {
				fmt.Fprintf(c.stdout, "%s: admitted by the graph engine\n", filename)
				return nil
			}
			printRejections(c.stdout, explain)
			if runtime.Mode(c.cfg.Engine) == runtime.ModeGraph {
				return &exitError{code: exitDeclined}
			}
			return nil
		},
	}
}
