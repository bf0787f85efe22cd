package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Mount points used by Extract inside the artifact.
const (
	resultsDir    = "/results"
	resultsOutDir = "/results_out"
)

// resultsScript returns a shell script copying every non-hidden top-level
// entry of src (src/*) into dst. A missing or empty src is not an error.
func resultsScript(src, dst string) string {
	return fmt.Sprintf(`if [ -d '%[1]s' ]; then for f in '%[1]s'/*; do if [ -e "$f" ]; then cp -r "$f" '%[2]s'/ || exit 1; fi; done; fi`, src, dst)
}

// Config locates the backend executables.
type Config struct {
	// Reference is the reference engine binary. It also serves inspect, run
	// and rmi.
	Reference string

	// Candidate is the candidate compiler binary.
	Candidate string

	// CandidateFileFlag names the candidate's build-definition flag.
	// Defaults to "-f".
	CandidateFileFlag string

	// TempDir receives rewritten build definitions. Empty means os.TempDir.
	TempDir string

	// BuildTimeout bounds each build invocation. Zero means no limit.
	BuildTimeout time.Duration
}

// BuildRequest describes one build step for one backend.
type BuildRequest struct {
	Backend  Backend
	Dir      string // build context and working directory
	Artifact string // artifact name to produce

	// Definition is the absolute path of the build definition. Empty means
	// the backend's default (Dockerfile in Dir).
	Definition string

	// Base, when set, replaces the definition's base image. Requires
	// Definition.
	Base string
}

// Driver invokes the backends.
type Driver struct {
	runner Runner
	cfg    Config
	logger *slog.Logger
}

// NewDriver creates a driver. A nil logger falls back to slog.Default.
func NewDriver(runner Runner, cfg Config, logger *slog.Logger) *Driver {
	if cfg.CandidateFileFlag == "" {
		cfg.CandidateFileFlag = "-f"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{runner: runner, cfg: cfg, logger: logger}
}

// Build runs one build and returns the artifact it produced.
//
// The artifact is returned even when the build fails, together with a
// *BuildFailure, so callers can report its log. Errors from the Runner
// (notably *EnvironmentError) are returned as-is.
func (d *Driver) Build(ctx context.Context, req BuildRequest) (*Artifact, error) {
	definition := req.Definition
	if req.Base != "" {
		if definition == "" {
			return nil, fmt.Errorf("base override for %s requires an explicit definition", req.Artifact)
		}
		path, remove, err := writeOverride(d.cfg.TempDir, definition, req.Base)
		if err != nil {
			return nil, err
		}
		defer remove()
		definition = path
	}

	inv := d.buildInvocation(req, definition)

	buildCtx := ctx
	if d.cfg.BuildTimeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, d.cfg.BuildTimeout)
		defer cancel()
	}

	d.logger.Info("building",
		"backend", req.Backend.String(),
		"artifact", req.Artifact,
		"base", req.Base,
	)

	out, err := d.runner.Run(buildCtx, inv)
	timedOut := errors.Is(buildCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	if err != nil && !timedOut {
		return nil, err
	}

	art := &Artifact{
		Name:     req.Artifact,
		Backend:  req.Backend,
		Base:     req.Base,
		Log:      out.Log,
		ExitCode: out.ExitCode,
	}
	if timedOut && art.ExitCode == 0 {
		art.ExitCode = -1
	}

	if art.ExitCode != 0 {
		d.logger.Warn("build failed",
			"backend", req.Backend.String(),
			"artifact", req.Artifact,
			"exit_code", art.ExitCode,
			"timed_out", timedOut,
		)
		return art, &BuildFailure{
			Backend:  req.Backend,
			Artifact: req.Artifact,
			ExitCode: art.ExitCode,
			TimedOut: timedOut,
			Log:      out.Log,
		}
	}

	return art, nil
}

// buildInvocation assembles the backend-specific build command line.
func (d *Driver) buildInvocation(req BuildRequest, definition string) Invocation {
	switch req.Backend {
	case Candidate:
		args := []string{"-t", req.Artifact}
		if definition != "" {
			args = append(args, d.cfg.CandidateFileFlag, definition)
		}
		return Invocation{Dir: req.Dir, Name: d.cfg.Candidate, Args: args}
	default:
		args := []string{"build", "--tag=" + req.Artifact}
		if definition != "" {
			args = append(args, "--file="+definition)
		}
		args = append(args, ".")
		return Invocation{Dir: req.Dir, Name: d.cfg.Reference, Args: args}
	}
}

// Inspect fetches the image configuration of an artifact from the reference
// engine's store.
func (d *Driver) Inspect(ctx context.Context, artifact string) (*ocispec.ImageConfig, error) {
	out, err := d.runner.Run(ctx, Invocation{
		Name: d.cfg.Reference,
		Args: []string{"inspect", artifact},
	})
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, &InspectionError{
			Artifact: artifact,
			Message:  fmt.Sprintf("inspect exited with status %d", out.ExitCode),
			Log:      out.Log,
		}
	}
	return decodeInspect(artifact, []byte(out.Stdout))
}

// inspectEntry is the subset of the inspect payload that is compared.
type inspectEntry struct {
	Config *ocispec.ImageConfig `json:"Config"`
}

func decodeInspect(artifact string, data []byte) (*ocispec.ImageConfig, error) {
	var entries []inspectEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &InspectionError{Artifact: artifact, Message: "malformed inspect output", Log: string(data), Err: err}
	}
	if len(entries) != 1 {
		return nil, &InspectionError{
			Artifact: artifact,
			Message:  fmt.Sprintf("expected one inspect entry, got %d", len(entries)),
			Log:      string(data),
		}
	}
	if entries[0].Config == nil {
		return nil, &InspectionError{Artifact: artifact, Message: "inspect entry has no Config", Log: string(data)}
	}
	return entries[0].Config, nil
}

// Extract copies the artifact's /results directory into hostDir by running
// the artifact with hostDir mounted at /results_out.
func (d *Driver) Extract(ctx context.Context, artifact, hostDir string) error {
	out, err := d.runner.Run(ctx, Invocation{
		Name: d.cfg.Reference,
		Args: []string{
			"run", "--rm",
			"-v=" + hostDir + ":" + resultsOutDir + ":rw",
			"--entrypoint=/bin/sh",
			artifact,
			"-c", resultsScript(resultsDir, resultsOutDir),
		},
	})
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return &ExtractionError{Artifact: artifact, ExitCode: out.ExitCode, Log: out.Log}
	}
	d.logger.Debug("extracted results", "artifact", artifact, "dir", hostDir)
	return nil
}

// Remove deletes an artifact from the reference engine's store.
func (d *Driver) Remove(ctx context.Context, artifact string) error {
	out, err := d.runner.Run(ctx, Invocation{
		Name: d.cfg.Reference,
		Args: []string{"rmi", "-f", artifact},
	})
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("rmi %s exited with status %d: %s", artifact, out.ExitCode, out.Log)
	}
	return nil
}
