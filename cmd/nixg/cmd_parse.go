package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ConnorBaker/nix-sub005/pkg/runtime"
)

func newParseCmd(c *cli) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "parse <file | ->",
		Short: "Parse a program and print it in normalized form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, filename, err := c.readSource(args[0])
			if err != nil {
				return err
			}
			formatted, err := runtime.New(runtime.WithLogger(c.log)).Format(source, filename)
			if err != nil {
				return reportError(c.stderr, err, c.jsonDiags)
			}
			if write && args[0] != "-" {
				if err := os.WriteFile(args[0], []byte(formatted), 0o644); err != nil {
					return &exitError{code: exitUsage, err: fmt.Errorf("writing %s: %w", args[0], err)}
				}
				return nil
			}
			fmt.Fprint(c.stdout, formatted)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "rewrite the file in place")
	return cmd
}
