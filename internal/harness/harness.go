package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/buildparity/internal/backend"
	"github.com/roach88/buildparity/internal/cleanup"
	"github.com/roach88/buildparity/internal/compare"
	"github.com/roach88/buildparity/internal/fixture"
)

// Result subdirectory names under each fixture's results directory.
const (
	TruthDir    = "truth"
	QuestionDir = "question"
)

// Options controls how fixtures are run.
type Options struct {
	// ResultsRoot receives <fixture>/truth and <fixture>/question.
	ResultsRoot string

	// ExtractResults enables the /results file-tree comparison.
	ExtractResults bool

	// ParallelBackends builds the reference and candidate side of a step
	// concurrently.
	ParallelBackends bool

	// ChainBase, when set, is the base image of the first step of every
	// multi-step fixture.
	ChainBase string
}

// Harness runs fixtures against both backends.
type Harness struct {
	driver *backend.Driver
	opts   Options
	logger *slog.Logger
}

// New creates a harness. A nil logger falls back to slog.Default.
func New(driver *backend.Driver, opts Options, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{driver: driver, opts: opts, logger: logger}
}

// Run executes fixtures one at a time, passing each outcome to report. It
// stops at the first error that is fatal for the whole run.
func (h *Harness) Run(ctx context.Context, fixtures []fixture.Fixture, report func(*Outcome)) error {
	for _, f := range fixtures {
		out, err := h.RunFixture(ctx, f)
		if out != nil && report != nil {
			report(out)
		}
		if err != nil {
			return fmt.Errorf("fixture %s: %w", f.ID, err)
		}
	}
	return nil
}

// RunFixture runs one fixture through its build chain and the equivalence
// checks.
//
// The returned error is non-nil only for run-fatal conditions (see package
// documentation); the outcome is still returned alongside it when the
// fixture got far enough to create artifacts. Every fixture-level failure is
// recorded on the outcome instead.
func (h *Harness) RunFixture(ctx context.Context, f fixture.Fixture) (*Outcome, error) {
	out := &Outcome{Fixture: f, State: StatePending}
	log := h.logger.With("fixture", f.ID)

	var truth, question string
	if h.opts.ExtractResults {
		var err error
		truth, question, err = h.prepareResults(f)
		if err != nil {
			return nil, err
		}
		out.ResultsDir = filepath.Dir(truth)
	}

	registry := cleanup.NewRegistry(h.driver, log)
	defer func() {
		// Cleanup must finish even when the run context was cancelled.
		warnings := registry.CleanupAll(context.WithoutCancel(ctx))
		out.CleanupWarnings = warnings
		failed := make(map[string]string, len(warnings))
		for _, w := range warnings {
			failed[w.Artifact] = w.Message
		}
		for _, name := range registry.Names() {
			out.addEvent(TraceEvent{Type: EventCleanup, Artifact: name, Error: failed[name]})
		}
	}()

	chain := NewChain(f, h.opts.ChainBase)
	if err := chain.Start(); err != nil {
		out.State = StateFailed
		out.Failure = err
		return out, nil
	}
	out.State = chain.State()
	log.Info("fixture started", "steps", len(f.Steps), "single", f.Single)

	for {
		built, err := h.buildStep(ctx, chain, registry, out)
		if err != nil {
			chain.Fail()
			out.State = chain.State()
			if isFatal(ctx, err) {
				return out, err
			}
			out.Failure = err
			log.Warn("fixture failed", "step", chain.Step().Index, "error", err)
			return out, nil
		}

		more, err := chain.Advance(built)
		if err != nil {
			chain.Fail()
			out.State = chain.State()
			out.Failure = err
			return out, nil
		}
		if !more {
			out.Reference = built[backend.Reference]
			out.Candidate = built[backend.Candidate]
			break
		}
	}
	out.State = chain.State()

	result, err := h.check(ctx, f, out, truth, question)
	if err != nil {
		if isFatal(ctx, err) {
			return out, err
		}
		out.Failure = err
		log.Warn("fixture failed", "error", err)
		return out, nil
	}
	out.Comparison = result

	log.Info("fixture finished", "passed", result.Passed)
	return out, nil
}

// buildStep builds the chain's current step on both backends. Artifact names
// are registered for cleanup before either build starts.
func (h *Harness) buildStep(ctx context.Context, chain *Chain, registry *cleanup.Registry, out *Outcome) (map[backend.Backend]*backend.Artifact, error) {
	step := chain.Step()
	reqs := make([]backend.BuildRequest, len(backend.All))
	for i, b := range backend.All {
		reqs[i] = chain.Request(b)
		registry.Register(reqs[i].Artifact)
	}

	arts := make([]*backend.Artifact, len(reqs))
	errs := make([]error, len(reqs))

	if h.opts.ParallelBackends {
		var g errgroup.Group
		for i := range reqs {
			g.Go(func() error {
				arts[i], errs[i] = h.driver.Build(ctx, reqs[i])
				return errs[i]
			})
		}
		_ = g.Wait()
	} else {
		for i := range reqs {
			arts[i], errs[i] = h.driver.Build(ctx, reqs[i])
			if errs[i] != nil {
				break
			}
		}
	}

	built := make(map[backend.Backend]*backend.Artifact, len(reqs))
	for i, req := range reqs {
		if arts[i] == nil && errs[i] == nil {
			continue
		}
		ev := TraceEvent{
			Type:     EventBuild,
			Step:     step.Index,
			Backend:  req.Backend.String(),
			Artifact: req.Artifact,
			Base:     req.Base,
		}
		if arts[i] != nil {
			ev.ExitCode = arts[i].ExitCode
			built[req.Backend] = arts[i]
		}
		if errs[i] != nil {
			ev.Error = errs[i].Error()
		}
		out.addEvent(ev)
	}

	// Fatal errors win over build failures so a broken environment is
	// never reported as a fixture difference.
	for _, err := range errs {
		if err != nil && isFatal(ctx, err) {
			return built, err
		}
	}
	for _, err := range errs {
		if err != nil {
			return built, err
		}
	}
	return built, nil
}

// check runs the configuration and file-tree comparisons on the final
// artifacts.
func (h *Harness) check(ctx context.Context, f fixture.Fixture, out *Outcome, truth, question string) (*compare.Result, error) {
	step := f.LastStep().Index

	refCfg, err := h.inspect(ctx, out, step, out.Reference)
	if err != nil {
		return nil, err
	}
	candCfg, err := h.inspect(ctx, out, step, out.Candidate)
	if err != nil {
		return nil, err
	}
	diffs := compare.Config(refCfg, candCfg)

	var tree compare.TreeDiff
	if h.opts.ExtractResults {
		if err := h.extract(ctx, out, step, out.Reference, truth); err != nil {
			return nil, err
		}
		if err := h.extract(ctx, out, step, out.Candidate, question); err != nil {
			return nil, err
		}
		tree, err = compare.Trees(truth, question)
		if err != nil {
			return nil, err
		}
	}

	return compare.NewResult(f.ID, diffs, tree), nil
}

func (h *Harness) inspect(ctx context.Context, out *Outcome, step int, art *backend.Artifact) (*ocispec.ImageConfig, error) {
	cfg, err := h.driver.Inspect(ctx, art.Name)
	ev := TraceEvent{Type: EventInspect, Step: step, Backend: art.Backend.String(), Artifact: art.Name}
	if err != nil {
		ev.Error = err.Error()
	}
	out.addEvent(ev)
	return cfg, err
}

func (h *Harness) extract(ctx context.Context, out *Outcome, step int, art *backend.Artifact, dir string) error {
	err := h.driver.Extract(ctx, art.Name, dir)
	ev := TraceEvent{Type: EventExtract, Step: step, Backend: art.Backend.String(), Artifact: art.Name}
	var ee *backend.ExtractionError
	if errors.As(err, &ee) {
		ev.ExitCode = ee.ExitCode
	}
	if err != nil {
		ev.Error = err.Error()
	}
	out.addEvent(ev)
	return err
}

// prepareResults clears and recreates the fixture's truth and question
// directories. Paths are absolute so they can be bind-mounted.
func (h *Harness) prepareResults(f fixture.Fixture) (string, string, error) {
	root, err := filepath.Abs(h.opts.ResultsRoot)
	if err != nil {
		return "", "", fmt.Errorf("resolve results root: %w", err)
	}
	dir := filepath.Join(root, filepath.FromSlash(f.RelPath))
	truth := filepath.Join(dir, TruthDir)
	question := filepath.Join(dir, QuestionDir)

	for _, d := range []string{truth, question} {
		if err := os.RemoveAll(d); err != nil {
			return "", "", fmt.Errorf("clear results directory: %w", err)
		}
		if err := os.MkdirAll(d, 0755); err != nil {
			return "", "", fmt.Errorf("create results directory: %w", err)
		}
	}
	return truth, question, nil
}

// isFatal reports whether err should abort the whole run rather than fail
// one fixture.
func isFatal(ctx context.Context, err error) bool {
	if backend.IsEnvironmentError(err) {
		return true
	}
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
