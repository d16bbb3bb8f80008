// Package config loads harness settings and the test matrix from sweepbench.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AndreyAkinshin/sweepbench/internal/matrix"
	"github.com/AndreyAkinshin/sweepbench/internal/schema"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "sweepbench.yaml"

// Environment variables that override file settings.
const (
	EnvTimeout   = "SWEEPBENCH_TIMEOUT"
	EnvToolchain = "SWEEPBENCH_TOOLCHAIN"
)

// Settings holds everything the harness needs besides the matrix.
type Settings struct {
	Compiler   string
	Flags      []string
	Source     string
	Executable string

	WorkDir   string
	Timeout   time.Duration // 0 disables the timeout
	Artifacts []string      // nil means the collector's built-in list

	ResultsDir string
	ReportPath string
}

// Defaults returns settings matching the original Fortran workflow.
func Defaults() Settings {
	return Settings{
		Compiler:   "gfortran",
		Flags:      []string{"-O3"},
		Source:     "main.f90",
		Executable: "quantum_transport.exe",
		WorkDir:    ".",
		ResultsDir: "test_results",
		ReportPath: "test_report.md",
	}
}

// Config is a loaded configuration: settings plus the test matrix.
type Config struct {
	Settings Settings
	Matrix   *matrix.Registry
}

type fileConfig struct {
	Build struct {
		Compiler string   `yaml:"compiler"`
		Flags    []string `yaml:"flags"`
		Source   string   `yaml:"source"`
		Output   string   `yaml:"output"`
	} `yaml:"build"`
	Solver struct {
		WorkDir   string   `yaml:"workdir"`
		Timeout   string   `yaml:"timeout"`
		Artifacts []string `yaml:"artifacts"`
	} `yaml:"solver"`
	Results string `yaml:"results"`
	Report  string `yaml:"report"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{Settings: Defaults(), Matrix: matrix.Default()}
}

// Load reads, validates and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadOptional loads path if it exists. A missing file is not an error only
// when the caller did not name it explicitly.
func LoadOptional(path string, explicit bool) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return Default(), nil
	}
	return Load(path)
}

// Parse validates data against the schema and decodes it. Unset fields
// keep their defaults; a document without cases uses the built-in matrix.
func Parse(data []byte) (*Config, error) {
	if err := schema.ValidateConfig(data); err != nil {
		return nil, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	s := Defaults()
	setIfNotEmpty(&s.Compiler, fc.Build.Compiler)
	setIfNotEmpty(&s.Source, fc.Build.Source)
	setIfNotEmpty(&s.Executable, fc.Build.Output)
	setIfNotEmpty(&s.WorkDir, fc.Solver.WorkDir)
	setIfNotEmpty(&s.ResultsDir, fc.Results)
	setIfNotEmpty(&s.ReportPath, fc.Report)
	if fc.Build.Flags != nil {
		s.Flags = fc.Build.Flags
	}
	if len(fc.Solver.Artifacts) > 0 {
		s.Artifacts = fc.Solver.Artifacts
	}
	if fc.Solver.Timeout != "" {
		d, err := time.ParseDuration(fc.Solver.Timeout)
		if err != nil {
			return nil, fmt.Errorf("solver.timeout: %w", err)
		}
		s.Timeout = d
	}

	reg, err := matrix.Parse(data)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		reg = matrix.Default()
	}

	return &Config{Settings: s, Matrix: reg}, nil
}

// ApplyEnv applies environment overrides. Invalid values are reported as
// warnings and ignored.
func (s *Settings) ApplyEnv() []string {
	var warnings []string

	if v := strings.TrimSpace(os.Getenv(EnvToolchain)); v != "" {
		s.Compiler = v
	}

	if v := strings.TrimSpace(os.Getenv(EnvTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("invalid %s value %q (not a duration), using %s", EnvTimeout, v, describeTimeout(s.Timeout)))
		case d < 0:
			warnings = append(warnings, fmt.Sprintf("%s=%s is negative, using %s", EnvTimeout, v, describeTimeout(s.Timeout)))
		default:
			s.Timeout = d
		}
	}

	return warnings
}

func describeTimeout(d time.Duration) string {
	if d == 0 {
		return "no timeout"
	}
	return d.String()
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
