package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

// cli is the state shared by every subcommand of one invocation.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	engine     string
	verbose    int
	jsonDiags  bool

	cfg Config
	log logr.Logger
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr, log: logr.Discard()}

	cmd := &cobra.Command{
		Use:   appName + " <command> [args]",
		Short: "Evaluate expressions of a lazy configuration language",
		Long: appName + " evaluates expressions of a small lazy configuration language.\n\n" +
			"Programs the graph-reduction engine admits are evaluated by it; everything\n" +
			"else goes to the reference evaluator. `" + appName + " check` explains the choice.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.CompletionOptions.DisableDefaultCmd = true

	pf := cmd.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default: $"+envConfig+" or ~/.config/"+appName+"/config.yaml)")
	pf.StringVar(&c.engine, "engine", "", "engine to use: auto, graph or reference")
	pf.CountVarP(&c.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	pf.BoolVar(&c.jsonDiags, "json-diagnostics", false, "print diagnostics as JSON")

	cmd.AddCommand(newEvalCmd(c), newCheckCmd(c), newParseCmd(c))
	return cmd
}

// setup loads the config file and applies the persistent flags over it.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	path := c.configPath
	if path == "" {
		var err error
		if path, err = resolveConfigPath(); err != nil {
			return &exitError{code: exitUsage, err: err}
		}
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine = c.engine
	}
	if flags.Changed("verbose") {
		cfg.Verbose = c.verbose
	}
	if err := cfg.validate(); err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	c.cfg = cfg
	if cfg.Verbose > 0 {
		c.log = newLogger(c.stderr, cfg.Verbose)
		c.log.V(1).Info("loaded configuration", "path", path, "engine", cfg.Engine)
	}
	return nil
}

// readSource returns the program text and the name used in diagnostics.
// "-" reads standard input.
func (c *cli) readSource(file string) (string, string, error) {
	if file == "-" {
		data, err := io.ReadAll(c.stdin)
		if err != nil {
			return "", "", &exitError{code: exitUsage, err: fmt.Errorf("reading stdin: %w", err)}
		}
		return string(data), "<stdin>", nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", "", &exitError{code: exitUsage, err: fmt.Errorf("cannot read file: %w", err)}
	}
	return string(data), file, nil
}
