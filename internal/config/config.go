// Package config loads harness settings from a YAML file, environment
// variables and defaults, and validates them against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/buildparity/internal/backend"
	"github.com/roach88/buildparity/internal/harness"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables that override the backend binaries.
const (
	EnvReference = "BUILDPARITY_REFERENCE"
	EnvCandidate = "BUILDPARITY_CANDIDATE"
)

// Config holds every harness setting.
type Config struct {
	// Reference is the reference engine binary; it also serves inspect,
	// run and rmi.
	Reference string `yaml:"reference"`

	// Candidate is the candidate compiler binary.
	Candidate string `yaml:"candidate"`

	// CandidateFileFlag is the flag the candidate takes a build definition
	// path with.
	CandidateFileFlag string `yaml:"candidate_file_flag"`

	Fixtures string `yaml:"fixtures"`
	Results  string `yaml:"results"`
	TempDir  string `yaml:"temp_dir"`

	ParallelBackends bool `yaml:"parallel_backends"`
	ExtractResults   bool `yaml:"extract_results"`

	// BuildTimeout bounds each build; zero disables the limit. YAML takes a
	// duration string such as "10m".
	BuildTimeout time.Duration `yaml:"build_timeout"`

	// History is the SQLite database recording run verdicts. Empty disables
	// history.
	History string `yaml:"history"`

	// ChainBase is the base image of the first step of every chain fixture.
	ChainBase string `yaml:"chain_base"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Reference:         "/usr/bin/docker",
		Candidate:         "docker-compile",
		CandidateFileFlag: "-f",
		Fixtures:          "tests",
		Results:           "results",
		ExtractResults:    true,
	}
}

// ValidationError reports a configuration rejected by the schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment overrides. Relative directory paths
// in the file are resolved against the file's directory.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return Config{}, err
		}
		cfg.resolvePaths(filepath.Dir(path))
	}

	cfg = cfg.WithEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses YAML into cfg, keeping the current value of every key the
// document does not set. Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// WithEnv returns a copy of c with the binary overrides found by lookup
// applied.
func (c Config) WithEnv(lookup func(string) (string, bool)) Config {
	if v, ok := lookup(EnvReference); ok && v != "" {
		c.Reference = v
	}
	if v, ok := lookup(EnvCandidate); ok && v != "" {
		c.Candidate = v
	}
	return c
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c.fields()))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// fields returns the configuration keyed by its YAML names.
func (c Config) fields() map[string]any {
	return map[string]any{
		"reference":           c.Reference,
		"candidate":           c.Candidate,
		"candidate_file_flag": c.CandidateFileFlag,
		"fixtures":            c.Fixtures,
		"results":             c.Results,
		"temp_dir":            c.TempDir,
		"parallel_backends":   c.ParallelBackends,
		"extract_results":     c.ExtractResults,
		"build_timeout":       int64(c.BuildTimeout),
		"history":             c.History,
		"chain_base":          c.ChainBase,
	}
}

// resolvePaths makes relative directory paths, and relative binary paths
// that name a file rather than a PATH entry, relative to base.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Fixtures, &c.Results, &c.TempDir, &c.History} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	for _, p := range []*string{&c.Reference, &c.Candidate} {
		if strings.ContainsRune(*p, filepath.Separator) && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Driver returns the backend driver settings.
func (c Config) Driver() backend.Config {
	return backend.Config{
		Reference:         c.Reference,
		Candidate:         c.Candidate,
		CandidateFileFlag: c.CandidateFileFlag,
		TempDir:           c.TempDir,
		BuildTimeout:      c.BuildTimeout,
	}
}

// Harness returns the harness options.
func (c Config) Harness() harness.Options {
	return harness.Options{
		ResultsRoot:      c.Results,
		ExtractResults:   c.ExtractResults,
		ParallelBackends: c.ParallelBackends,
		ChainBase:        c.ChainBase,
	}
}
