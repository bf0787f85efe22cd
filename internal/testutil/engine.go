package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/roach88/buildparity/internal/backend"
)

// Binary names the fake answers to.
const (
	ReferenceBinary = "/usr/bin/docker"
	CandidateBinary = "/usr/local/bin/docker-compile"
)

// FakeEngine is a scripted backend.Runner. Zero values of the maps are
// allocated by NewFakeEngine; tests fill them before running.
type FakeEngine struct {
	mu sync.Mutex

	// Calls records every invocation in order.
	Calls []backend.Invocation

	// Definitions maps artifact name to the build definition text the build
	// was given.
	Definitions map[string]string

	// Images holds artifacts currently in the store.
	Images map[string]bool

	// Removed lists artifacts passed to rmi, in order.
	Removed []string

	// BuildExit scripts a non-zero build exit code per artifact.
	BuildExit map[string]int

	// Configs scripts inspect metadata per artifact; DefaultConfig is used
	// for artifacts without an entry.
	Configs       map[string]ocispec.ImageConfig
	DefaultConfig ocispec.ImageConfig

	// Results scripts /results contents per artifact: relative path to
	// file content.
	Results map[string]map[string]string

	// RemoveExit scripts a non-zero rmi exit code per artifact.
	RemoveExit map[string]int

	// StartErr, when set, is returned for every invocation as if the
	// binary could not be started.
	StartErr error
}

// NewFakeEngine returns an engine with every artifact building successfully
// and an empty default configuration.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		Definitions: make(map[string]string),
		Images:      make(map[string]bool),
		BuildExit:   make(map[string]int),
		Configs:     make(map[string]ocispec.ImageConfig),
		Results:     make(map[string]map[string]string),
		RemoveExit:  make(map[string]int),
	}
}

// Config returns a backend.Config pointing at the fake's binaries.
func (e *FakeEngine) Config() backend.Config {
	return backend.Config{
		Reference: ReferenceBinary,
		Candidate: CandidateBinary,
	}
}

// Run implements backend.Runner.
func (e *FakeEngine) Run(ctx context.Context, inv backend.Invocation) (backend.Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Calls = append(e.Calls, inv)

	if e.StartErr != nil {
		return backend.Output{}, &backend.EnvironmentError{Command: inv.Argv(), Err: e.StartErr}
	}
	if err := ctx.Err(); err != nil {
		return backend.Output{ExitCode: -1}, err
	}

	switch {
	case inv.Name == CandidateBinary:
		return e.candidateBuild(inv)
	case inv.Name != ReferenceBinary || len(inv.Args) == 0:
		return backend.Output{ExitCode: 127, Log: "unknown command " + inv.Name}, nil
	}

	switch inv.Args[0] {
	case "build":
		return e.referenceBuild(inv)
	case "inspect":
		return e.inspect(inv.Args[1])
	case "run":
		return e.run(inv.Args)
	case "rmi":
		return e.rmi(inv.Args[len(inv.Args)-1])
	default:
		return backend.Output{ExitCode: 125, Log: "unknown subcommand " + inv.Args[0]}, nil
	}
}

func (e *FakeEngine) referenceBuild(inv backend.Invocation) (backend.Output, error) {
	var tag, file string
	for _, arg := range inv.Args[1:] {
		switch {
		case strings.HasPrefix(arg, "--tag="):
			tag = strings.TrimPrefix(arg, "--tag=")
		case strings.HasPrefix(arg, "--file="):
			file = strings.TrimPrefix(arg, "--file=")
		}
	}
	return e.build(inv.Dir, tag, file)
}

func (e *FakeEngine) candidateBuild(inv backend.Invocation) (backend.Output, error) {
	var tag, file string
	for i := 0; i+1 < len(inv.Args); i += 2 {
		switch inv.Args[i] {
		case "-t":
			tag = inv.Args[i+1]
		default:
			file = inv.Args[i+1]
		}
	}
	return e.build(inv.Dir, tag, file)
}

func (e *FakeEngine) build(dir, tag, file string) (backend.Output, error) {
	if file == "" {
		file = filepath.Join(dir, "Dockerfile")
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return backend.Output{ExitCode: 1, Log: fmt.Sprintf("cannot read %s: %v\n", file, err)}, nil
	}
	e.Definitions[tag] = string(content)

	if code := e.BuildExit[tag]; code != 0 {
		return backend.Output{ExitCode: code, Log: "build step failed for " + tag + "\n"}, nil
	}

	e.Images[tag] = true
	return backend.Output{Log: "Successfully tagged " + tag + "\n"}, nil
}

func (e *FakeEngine) inspect(tag string) (backend.Output, error) {
	if !e.Images[tag] {
		return backend.Output{ExitCode: 1, Stdout: "[]\n", Log: "Error: No such object: " + tag + "\n"}, nil
	}

	cfg, ok := e.Configs[tag]
	if !ok {
		cfg = e.DefaultConfig
	}
	data, err := json.Marshal([]map[string]any{{"Id": "sha256:" + tag, "Config": cfg}})
	if err != nil {
		return backend.Output{}, err
	}
	return backend.Output{Stdout: string(data), Log: string(data)}, nil
}

func (e *FakeEngine) run(args []string) (backend.Output, error) {
	var hostDir, tag string
	for i, arg := range args {
		if strings.HasPrefix(arg, "-v=") {
			hostDir = strings.SplitN(strings.TrimPrefix(arg, "-v="), ":", 2)[0]
		}
		if strings.HasPrefix(arg, "--entrypoint=") && i+1 < len(args) {
			tag = args[i+1]
		}
	}
	if !e.Images[tag] {
		return backend.Output{ExitCode: 125, Log: "Unable to find image " + tag + "\n"}, nil
	}

	files := e.Results[tag]
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		dst := filepath.Join(hostDir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return backend.Output{ExitCode: 1, Log: err.Error()}, nil
		}
		if err := os.WriteFile(dst, []byte(files[p]), 0644); err != nil {
			return backend.Output{ExitCode: 1, Log: err.Error()}, nil
		}
	}
	return backend.Output{}, nil
}

func (e *FakeEngine) rmi(tag string) (backend.Output, error) {
	e.Removed = append(e.Removed, tag)
	if code := e.RemoveExit[tag]; code != 0 {
		return backend.Output{ExitCode: code, Log: "Error: conflict: unable to remove " + tag + "\n"}, nil
	}
	delete(e.Images, tag)
	return backend.Output{Log: "Untagged: " + tag + "\n"}, nil
}

// Definition returns the build definition text recorded for an artifact.
func (e *FakeEngine) Definition(tag string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Definitions[tag]
}

// BuiltTags returns the artifact names of every build invocation, in call
// order, whether or not the build succeeded.
func (e *FakeEngine) BuiltTags() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var tags []string
	for _, inv := range e.Calls {
		switch {
		case inv.Name == CandidateBinary && len(inv.Args) >= 2:
			tags = append(tags, inv.Args[1])
		case inv.Name == ReferenceBinary && len(inv.Args) >= 2 && inv.Args[0] == "build":
			tags = append(tags, strings.TrimPrefix(inv.Args[1], "--tag="))
		}
	}
	return tags
}

// RemovedTags returns a copy of the rmi history.
func (e *FakeEngine) RemovedTags() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.Removed...)
}
