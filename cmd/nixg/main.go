// Command nixg is the CLI entry point of the evaluator.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, "Error:", ee.err)
			}
			return ee.code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitUsage
	}
	return 0
}
