// Package config loads circinspect settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cierrors "circinspect/pkg/errors"
)

// Config is the full circinspect configuration.
type Config struct {
	Exec ExecConfig `yaml:"exec"`
	Draw DrawConfig `yaml:"draw"`
	Sim  SimConfig  `yaml:"sim"`
	Log  LogConfig  `yaml:"log"`
}

// ExecConfig bounds a single execution of a submitted program.
type ExecConfig struct {
	// Timeout is the wall-clock bound for one program run.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxSteps bounds the number of interpreter steps per run.
	MaxSteps uint64 `yaml:"max_steps,omitempty"`

	// MaxCallDepth bounds user-function recursion.
	MaxCallDepth int `yaml:"max_call_depth,omitempty"`

	// MaxWires bounds the simulated register size.
	MaxWires int `yaml:"max_wires,omitempty"`
}

// DrawConfig controls diagram labels.
type DrawConfig struct {
	// Decimals is the number of decimals printed for gate parameters.
	Decimals int `yaml:"decimals,omitempty"`

	// ShowPi prints parameters as pi fractions when they match one.
	ShowPi *bool `yaml:"show_pi,omitempty"`
}

// SimConfig controls the simulator.
type SimConfig struct {
	// Seed feeds finite-shot sampling.
	Seed uint64 `yaml:"seed,omitempty"`
}

// LogConfig mirrors the log package settings.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	showPi := true
	return &Config{
		Exec: ExecConfig{
			Timeout:      10 * time.Second,
			MaxSteps:     5_000_000,
			MaxCallDepth: 200,
			MaxWires:     20,
		},
		Draw: DrawConfig{Decimals: 2, ShowPi: &showPi},
		Sim:  SimConfig{Seed: 42},
		Log:  LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads configPath (if non-empty), fills unset fields from Default,
// applies environment overrides and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &cierrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Exec.Timeout == 0 {
		c.Exec.Timeout = d.Exec.Timeout
	}
	if c.Exec.MaxSteps == 0 {
		c.Exec.MaxSteps = d.Exec.MaxSteps
	}
	if c.Exec.MaxCallDepth == 0 {
		c.Exec.MaxCallDepth = d.Exec.MaxCallDepth
	}
	if c.Exec.MaxWires == 0 {
		c.Exec.MaxWires = d.Exec.MaxWires
	}
	if c.Draw.Decimals == 0 {
		c.Draw.Decimals = d.Draw.Decimals
	}
	if c.Draw.ShowPi == nil {
		c.Draw.ShowPi = d.Draw.ShowPi
	}
	if c.Sim.Seed == 0 {
		c.Sim.Seed = d.Sim.Seed
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("CIRCINSPECT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Exec.Timeout = d
		}
	}
	if val := os.Getenv("CIRCINSPECT_MAX_WIRES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Exec.MaxWires = n
		}
	}
	if val := os.Getenv("CIRCINSPECT_SEED"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			c.Sim.Seed = n
		}
	}
}

// Validate checks that every bound is usable.
func (c *Config) Validate() error {
	switch {
	case c.Exec.Timeout <= 0:
		return &cierrors.ConfigError{Key: "exec.timeout", Reason: "must be positive"}
	case c.Exec.MaxCallDepth < 1:
		return &cierrors.ConfigError{Key: "exec.max_call_depth", Reason: "must be at least 1"}
	case c.Exec.MaxWires < 1 || c.Exec.MaxWires > 28:
		return &cierrors.ConfigError{Key: "exec.max_wires", Reason: fmt.Sprintf("must be in [1, 28], got %d", c.Exec.MaxWires)}
	case c.Draw.Decimals < 0 || c.Draw.Decimals > 10:
		return &cierrors.ConfigError{Key: "draw.decimals", Reason: "must be in [0, 10]"}
	}
	return nil
}
