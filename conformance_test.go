package main

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConnorBaker/nix-sub005/internal/testutil"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/formatter"
	"github.com/ConnorBaker/nix-sub005/pkg/runtime"
)

// outcome mirrors what the CLI would print and return for a scenario.
type outcome struct {
	exitCode int
	engine   string
	stdout   string
	diags    []diagnostics.Diagnostic
}

func TestConformance(t *testing.T) {
	dirs, err := testutil.ListScenarios(testutil.ScenariosDir)
	require.NoError(t, err)
	require.NotEmpty(t, dirs)

	for _, dir := range dirs {
		dir := dir
		t.Run(filepath.Base(dir), func(t *testing.T) {
			scenario, err := testutil.LoadScenario(dir)
			require.NoError(t, err)
			source, filename, err := testutil.ReadProgramFile(dir, scenario.Cmd)
			require.NoError(t, err)

			var got outcome
			switch scenario.Cmd[0] {
			case "eval":
				got = runEval(t, source, filename, scenario.Cmd)
			case "check":
				got = runCheck(source, filename, scenario.Cmd)
			default:
				t.Skipf("unsupported command: %s", scenario.Cmd[0])
			}
			checkExpectations(t, got, scenario.Expect)

			// Every successful evaluation must agree with the reference evaluator.
			if scenario.Cmd[0] == "eval" && got.exitCode == 0 && got.engine == runtime.EngineGraph {
				args := append([]string{}, scenario.Cmd...)
				ref := runEval(t, source, filename, append(args, "--engine", string(runtime.ModeReference)))
				assert.Equal(t, got.stdout, ref.stdout, "graph and reference results differ")
			}
		})
	}
}

func runEval(t *testing.T, source, filename string, args []string) outcome {
	t.Helper()
	mode, err := runtime.ParseMode(lastFlag(args, "--engine"))
	require.NoError(t, err)
	format, err := formatter.ParseFormat(testutil.Flag(args, "--output"))
	require.NoError(t, err)

	rt := runtime.New(
		runtime.WithEngineMode(mode),
		runtime.WithStrict(testutil.HasFlag(args, "--strict")),
	)
	res, err := rt.Run(context.Background(), source, filename)
	if err != nil {
		return failure(err)
	}
	out, err := formatter.Render(res.Value, format)
	if err != nil {
		return failure(err)
	}
	return outcome{engine: res.Engine, stdout: strings.TrimRight(out, "\n")}
}

func runCheck(source, filename string, args []string) outcome {
	rt := runtime.New()
	diags, explain := rt.Check(source, filename)
	if len(diags) > 0 {
		return outcome{exitCode: 2, diags: diags}
	}
	if explain == nil {
		return outcome{stdout: "admitted"}
	}
	code := 0
	if testutil.Flag(args, "--engine") == string(runtime.ModeGraph) {
		code = 3
	}
	return outcome{exitCode: code, stdout: explain.Error()}
}

// failure maps an error to the CLI exit code and diagnostics.
func failure(err error) outcome {
	var de *runtime.DiagnosticError
	if errors.As(err, &de) {
		return outcome{exitCode: 2, diags: de.Diagnostics}
	}
	var ee *diagnostics.EvalError
	if errors.As(err, &ee) {
		code := 4
		if ee.Code == diagnostics.EAssert {
			code = 5
		}
		return outcome{exitCode: code, diags: []diagnostics.Diagnostic{ee.Diagnostic()}}
	}
	if errors.Is(err, runtime.ErrDeclined) {
		return outcome{exitCode: 3, diags: []diagnostics.Diagnostic{
			diagnostics.MakeDiag(diagnostics.EUnsupported, err.Error(), nil, ""),
		}}
	}
	return outcome{exitCode: 4, diags: []diagnostics.Diagnostic{
		diagnostics.MakeDiag("E_INTERNAL", err.Error(), nil, ""),
	}}
}

func checkExpectations(t *testing.T, got outcome, want testutil.ExpectedResult) {
	t.Helper()
	stderr := diagnostics.FormatDiagnostics(got.diags, false)
	assert.Equal(t, want.ExitCode, got.exitCode, "stderr: %s", stderr)

	if want.Engine != "" {
		assert.Equal(t, want.Engine, got.engine)
	}
	if want.StdoutText != "" {
		assert.Equal(t, want.StdoutText, got.stdout)
	}
	if want.StdoutContains != "" {
		assert.Contains(t, got.stdout, want.StdoutContains)
	}
	if want.StdoutJSON != nil {
		assert.JSONEq(t, string(want.StdoutJSON), got.stdout)
	}
	if want.StderrContains != "" {
		assert.Contains(t, stderr, want.StderrContains)
	}
	if want.StderrJSONSubset != nil {
		var expected, actual []any
		require.NoError(t, json.Unmarshal(want.StderrJSONSubset, &expected))
		require.NoError(t, json.Unmarshal([]byte(stderr), &actual))
		for _, e := range expected {
			found := false
			for _, a := range actual {
				if testutil.IsSubset(e, a) {
					found = true
					break
				}
			}
			assert.True(t, found, "stderr JSON subset not found: %v in %s", e, stderr)
		}
	}
}

// lastFlag is like testutil.Flag but lets a later occurrence win, the way
// repeated CLI flags do.
func lastFlag(args []string, name string) string {
	v := ""
	for i := 0; i+1 < len(args); i++ {
		if args[i] == name {
			v = args[i+1]
		}
	}
	return v
}
