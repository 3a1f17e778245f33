package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ConnorBaker/nix-sub005/pkg/evaluator"
	"github.com/ConnorBaker/nix-sub005/pkg/formatter"
	"github.com/ConnorBaker/nix-sub005/pkg/runtime"
)

const appName = "nixg"

var envConfig = strings.ToUpper(appName) + "_CONFIG"

// Config is the on-disk CLI configuration. Flags override every field.
type Config struct {
	Engine       string `yaml:"engine"`
	Output       string `yaml:"output"`
	Strict       bool   `yaml:"strict"`
	MaxExprDepth int    `yaml:"maxExprDepth"`
	MaxCallDepth int    `yaml:"maxCallDepth"`
	Verbose      int    `yaml:"verbose"`
}

func defaultConfig() Config {
	return Config{
		Engine:       string(runtime.ModeAuto),
		Output:       string(formatter.FormatNix),
		MaxExprDepth: runtime.DefaultMaxExprDepth,
		MaxCallDepth: evaluator.DefaultMaxCallDepth,
	}
}

// resolveConfigPath returns the config file location.
// Priority: $NIXG_CONFIG > $XDG_CONFIG_HOME/nixg/config.yaml > ~/.config/nixg/config.yaml
func resolveConfigPath() (string, error) {
	if v := os.Getenv(envConfig); v != "" {
		return v, nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, appName, "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName, "config.yaml"), nil
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if _, err := runtime.ParseMode(c.Engine); err != nil {
		return err
	}
	if _, err := formatter.ParseFormat(c.Output); err != nil {
		return err
	}
	if c.MaxExprDepth < 0 {
		return fmt.Errorf("maxExprDepth must not be negative, got %d", c.MaxExprDepth)
	}
	if c.MaxCallDepth < 0 {
		return fmt.Errorf("maxCallDepth must not be negative, got %d", c.MaxCallDepth)
	}
	return nil
}

// runtimeOptions turns a validated config into runtime options.
func (c Config) runtimeOptions() []runtime.Option {
	mode, _ := runtime.ParseMode(c.Engine)
	return []runtime.Option{
		runtime.WithEngineMode(mode),
		runtime.WithStrict(c.Strict),
		runtime.WithMaxExprDepth(c.MaxExprDepth),
		runtime.WithMaxCallDepth(c.MaxCallDepth),
	}
}
