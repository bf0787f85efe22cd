package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/roach88/buildparity/internal/backend"
	"github.com/roach88/buildparity/internal/config"
	"github.com/roach88/buildparity/internal/fixture"
	"github.com/roach88/buildparity/internal/harness"
	"github.com/roach88/buildparity/internal/report"
	"github.com/roach88/buildparity/internal/store"
)

// lockFileName is created in the results directory while a run owns it.
const lockFileName = ".buildparity.lock"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter   string        // fixture filter (glob pattern)
	Parallel bool          // build both backends of a step concurrently
	Timeout  time.Duration // per-build timeout

	// Runner overrides the subprocess runner (for testing).
	// If nil, defaults to backend.ExecRunner.
	Runner backend.Runner
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [fixtures-dir]",
		Short: "Build fixtures with both backends and compare the results",
		Long: `Build every fixture with the reference engine and the candidate tool and
compare the resulting images.

Each immediate subdirectory of the fixtures directory is one fixture. A
Dockerfile makes a single-step fixture; Dockerfile.1, Dockerfile.2, ... make
a chain where each step builds on the previous step's image from the same
backend. The final images must have the same Cmd, Entrypoint, Env,
ExposedPorts and WorkingDir, and the same /results files.

Exit codes:
  0 - All fixtures passed
  1 - One or more fixtures failed
  2 - Command error (bad configuration, missing backend, etc.)

Examples:
  buildparity run ./tests
  buildparity run --filter "chain-*" --parallel
  buildparity run --config buildparity.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runFixtures(cmd, opts, dir)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter fixtures by glob pattern")
	cmd.Flags().BoolVar(&opts.Parallel, "parallel", false, "build both backends of a step concurrently")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-build timeout (0 disables)")

	return cmd
}

func runFixtures(cmd *cobra.Command, opts *RunOptions, dir string) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)
	logger := opts.logger(cmd)
	w := cmd.OutOrStdout()

	cfg, err := opts.loadConfig(f)
	if err != nil {
		return err
	}
	if dir != "" {
		cfg.Fixtures = dir
	}
	if cmd.Flags().Changed("parallel") {
		cfg.ParallelBackends = opts.Parallel
	}
	if cmd.Flags().Changed("timeout") {
		cfg.BuildTimeout = opts.Timeout
	}
	if err := cfg.Validate(); err != nil {
		return f.Fail(ExitCommandError, CodeConfig, "invalid configuration", err)
	}

	fixtures, err := discover(f, cfg.Fixtures, opts.Filter)
	if err != nil {
		return err
	}
	if len(fixtures) == 0 {
		if f.JSON() {
			return f.Respond(CLIResponse{Status: "ok", Data: report.NewSummary("")})
		}
		fmt.Fprintln(w, "No fixtures found.")
		return nil
	}

	lock, err := lockResults(cfg.Results)
	if err != nil {
		return f.Fail(ExitCommandError, CodeLocked, "failed to lock results directory", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release results lock", "error", err)
		}
	}()

	history, runID, err := beginHistory(ctx, cfg, logger)
	if err != nil {
		return f.Fail(ExitCommandError, CodeHistory, "failed to open run history", err)
	}
	if history != nil {
		defer history.Close()
	}

	runner := opts.Runner
	if runner == nil {
		runner = backend.ExecRunner{}
	}
	driver := backend.NewDriver(runner, cfg.Driver(), logger)
	h := harness.New(driver, cfg.Harness(), logger)

	// History writes must land even after the run context is cancelled.
	storeCtx := context.WithoutCancel(ctx)

	summary := report.NewSummary(runID)
	runErr := h.Run(ctx, fixtures, func(out *harness.Outcome) {
		r := report.FromOutcome(out)
		summary.Add(r)
		if !f.JSON() {
			_ = report.WriteFixture(w, r, opts.Verbose)
		}
		if history != nil {
			if err := history.RecordVerdict(storeCtx, runID, verdictOf(r)); err != nil {
				logger.Warn("failed to record verdict", "fixture", r.ID, "error", err)
			}
		}
	})

	if history != nil {
		status := store.StatusCompleted
		if runErr != nil {
			status = store.StatusAborted
		}
		if _, err := history.FinishRun(storeCtx, runID, status); err != nil {
			logger.Warn("failed to finish run record", "run_id", runID, "error", err)
		}
	}

	if runErr != nil {
		if !f.JSON() {
			_ = report.WriteSummary(w, summary)
		}
		return f.Fail(ExitCommandError, CodeRunAborted, "run aborted", runErr)
	}

	return outputRunResult(f, w, summary)
}

// outputRunResult writes the closing summary and maps failures to
// ExitFailure.
func outputRunResult(f *OutputFormatter, w io.Writer, summary *report.Summary) error {
	if f.JSON() {
		resp := CLIResponse{Status: "ok", Data: summary}
		if !summary.AllPassed() {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    CodeFixturesFailed,
				Message: fmt.Sprintf("%d fixture(s) failed", summary.Failed),
			}
		}
		if err := f.Respond(resp); err != nil {
			return err
		}
	} else if err := report.WriteSummary(w, summary); err != nil {
		return err
	}

	if !summary.AllPassed() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d fixture(s) failed", summary.Failed))
	}
	return nil
}

// discover finds and filters the fixtures under root.
func discover(f *OutputFormatter, root, pattern string) ([]fixture.Fixture, error) {
	fixtures, err := fixture.Discover(root)
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeDiscovery, "failed to discover fixtures", err)
	}
	fixtures, err = fixture.Filter(fixtures, pattern)
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeDiscovery, "failed to filter fixtures", err)
	}
	return fixtures, nil
}

// lockResults takes an exclusive lock on the results directory; concurrent
// runs share artifact names and extraction paths.
func lockResults(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s is in use by another run", dir)
	}
	return lock, nil
}

// beginHistory opens the history store and records the run start. It
// returns a nil store when history is disabled.
func beginHistory(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store.Store, string, error) {
	if cfg.History == "" {
		return nil, "", nil
	}
	st, err := store.Open(cfg.History)
	if err != nil {
		return nil, "", err
	}
	run, err := st.BeginRun(ctx, store.RunInfo{
		FixturesDir: cfg.Fixtures,
		Reference:   cfg.Reference,
		Candidate:   cfg.Candidate,
	})
	if err != nil {
		st.Close()
		return nil, "", err
	}
	logger.Info("run started", "run_id", run.ID, "history", cfg.History)
	return st, run.ID, nil
}

func verdictOf(r report.FixtureReport) store.Verdict {
	return store.Verdict{
		FixtureID: r.ID,
		Name:      r.Name,
		Pass:      r.Pass,
		Category:  string(r.Category),
		Details:   r.Details,
	}
}
