package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	stdout, stderr string
	code           int
}

// execute runs the CLI with an empty config file unless args name one.
func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	t.Setenv(envConfig, filepath.Join(t.TempDir(), "absent.yaml"))

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	code := 0
	if err := cmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		} else {
			code = exitUsage
		}
	}
	return result{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEval(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"expr", []string{"eval", "-E", `{ a = 1; } // { b = 2; }`}, "{ a = 1; b = 2; }\n"},
		{"json", []string{"eval", "-E", `{ a = [ 1 true ]; }`, "-o", "json"}, `{"a":[1,true]}` + "\n"},
		{"reference", []string{"eval", "--engine", "reference", "-E", `builtins.length [ 1 2 ]`}, "2\n"},
		{"declined in auto", []string{"eval", "-E", `2 * 3`}, "6\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := execute(t, "", tc.args...)
			require.Equal(t, 0, r.code, r.stderr)
			assert.Equal(t, tc.want, r.stdout)
		})
	}
}

func TestEvalFileAndStdin(t *testing.T) {
	path := writeFile(t, "prog.nix", "let x = 20; in x + 22\n")
	r := execute(t, "", "eval", path)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "42\n", r.stdout)

	r = execute(t, "[ 1 2 ]", "eval", "-")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "[ 1 2 ]\n", r.stdout)
}

func TestEvalExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		err  string
	}{
		{"parse error", []string{"eval", "-E", `{ a = ; }`}, exitParse, "E_PARSE"},
		{"missing attribute", []string{"eval", "-E", `{ a = 1; }.b`}, exitEval, "E_MISSING_ATTR"},
		{"assertion", []string{"eval", "-E", `assert 1 == 2; 1`}, exitAssert, "E_ASSERT"},
		{"graph declined", []string{"eval", "--engine", "graph", "-E", `2 * 3`}, exitDeclined, "declined"},
		{"no input", []string{"eval"}, exitUsage, ""},
		{"bad output", []string{"eval", "-o", "xml", "-E", "1"}, exitUsage, ""},
		{"missing file", []string{"eval", "/nonexistent/x.nix"}, exitUsage, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := execute(t, "", tc.args...)
			assert.Equal(t, tc.code, r.code)
			assert.Contains(t, r.stderr, tc.err)
		})
	}
}

func TestEvalStrict(t *testing.T) {
	r := execute(t, "", "eval", "--strict", "-E", `{ a = 1; b = { }.c; }`)
	assert.Equal(t, exitEval, r.code)
	assert.Contains(t, r.stderr, "E_MISSING_ATTR")
}

func TestJSONDiagnostics(t *testing.T) {
	r := execute(t, "", "eval", "--json-diagnostics", "-E", `{ a = 1; }.b`)
	assert.Equal(t, exitEval, r.code)
	assert.True(t, strings.HasPrefix(r.stderr, `[{"code":"E_MISSING_ATTR"`), r.stderr)
}

func TestStatsAndMetrics(t *testing.T) {
	r := execute(t, "", "eval", "--stats", "--metrics", "-E", `{ a = 1; }.a`)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stderr, "graph: attempts=1 successes=1")
	assert.Contains(t, r.stderr, "nixg_graph_attempts_total")
}

func TestCheck(t *testing.T) {
	ok := writeFile(t, "ok.nix", `let a = 1; in { b = a + 1; }`)
	r := execute(t, "", "check", ok)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "admitted by the graph engine")

	declined := writeFile(t, "mul.nix", "let a = 1;\nin a * map")
	r = execute(t, "", "check", declined)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "operator")
	assert.Contains(t, r.stdout, "reference to builtin 'map'")
	assert.Contains(t, r.stdout, "mul.nix:2:")

	r = execute(t, "", "check", "--engine", "graph", declined)
	assert.Equal(t, exitDeclined, r.code)

	bad := writeFile(t, "bad.nix", `{ a = ; }`)
	r = execute(t, "", "check", bad)
	assert.Equal(t, exitParse, r.code)
	assert.Contains(t, r.stderr, "E_PARSE")
}

func TestParse(t *testing.T) {
	r := execute(t, "{a=1;}", "parse", "-")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "a = 1;")

	path := writeFile(t, "fmt.nix", "{a=1;}")
	r = execute(t, "", "parse", "-w", path)
	require.Equal(t, 0, r.code, r.stderr)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, r.stdout, "")
	assert.Contains(t, string(data), "a = 1;")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("engine: graph\noutput: json\n"), 0o644))

	r := execute(t, "", "--config", cfgPath, "eval", "-E", `{ a = 1; }`)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, `{"a":1}`+"\n", r.stdout)

	// config selects graph only, the flag overrides it
	r = execute(t, "", "--config", cfgPath, "eval", "-E", `2 * 3`)
	assert.Equal(t, exitDeclined, r.code)
	r = execute(t, "", "--config", cfgPath, "--engine", "auto", "eval", "-o", "nix", "-E", `2 * 3`)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "6\n", r.stdout)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	path := writeFile(t, "c.yaml", "strict: true\nmaxCallDepth: 50\nverbose: 2\n")
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Strict)
	assert.Equal(t, 50, cfg.MaxCallDepth)
	assert.Equal(t, 2, cfg.Verbose)
	assert.Equal(t, "auto", cfg.Engine)

	empty := writeFile(t, "empty.yaml", "")
	cfg, err = loadConfig(empty)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	for _, bad := range []string{"engine: fast\n", "unknownKey: 1\n", "maxExprDepth: -1\n", "output: [\n"} {
		_, err := loadConfig(writeFile(t, "bad.yaml", bad))
		assert.Error(t, err, bad)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(envConfig, "/etc/custom.yaml")
	path, err := resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/custom.yaml", path)

	t.Setenv(envConfig, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	path, err = resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", appName, "config.yaml"), path)
}
