package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/buildparity/internal/report"
	"github.com/roach88/buildparity/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// RunDetail is the JSON payload for a single run.
type RunDetail struct {
	Run      store.Run       `json:"run"`
	Verdicts []store.Verdict `json:"verdicts"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show runs recorded in the history database.

Without an argument, lists the most recent runs. With a run ID (or a unique
prefix of one), shows that run's per-fixture verdicts.

Requires "history" to be set in the configuration file.

Examples:
  buildparity history
  buildparity history 0192f3
  buildparity history --limit 5 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showRun(cmd, opts, args[0])
			}
			return listRuns(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs to list (0 for all)")

	return cmd
}

func openHistory(opts *HistoryOptions, f *OutputFormatter) (*store.Store, error) {
	cfg, err := opts.loadConfig(f)
	if err != nil {
		return nil, err
	}
	if cfg.History == "" {
		return nil, f.Fail(ExitCommandError, CodeHistory, "run history is not configured", errors.New("set history in the configuration file"))
	}
	st, err := store.Open(cfg.History)
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeHistory, "failed to open run history", err)
	}
	return st, nil
}

func listRuns(cmd *cobra.Command, opts *HistoryOptions) error {
	f := opts.formatter(cmd)
	st, err := openHistory(opts, f)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return f.Fail(ExitCommandError, CodeHistory, "failed to list runs", err)
	}

	if f.JSON() {
		return f.Success(runs)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %s  %-9s  %d passed, %d failed, %d total\n",
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			run.Status,
			run.Passed, run.Failed, run.Total,
		)
	}
	return nil
}

func showRun(cmd *cobra.Command, opts *HistoryOptions, id string) error {
	f := opts.formatter(cmd)
	st, err := openHistory(opts, f)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.FindRun(cmd.Context(), id)
	if err != nil {
		return f.Fail(ExitCommandError, CodeHistory, "failed to find run", err)
	}
	verdicts, err := st.Verdicts(cmd.Context(), run.ID)
	if err != nil {
		return f.Fail(ExitCommandError, CodeHistory, "failed to read verdicts", err)
	}

	if f.JSON() {
		return f.Success(RunDetail{Run: run, Verdicts: verdicts})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s (%s)\n", run.ID, run.Status)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "Finished: %s\n", run.FinishedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Fixtures: %s\n\n", run.FixturesDir)

	summary := report.NewSummary(run.ID)
	for _, v := range verdicts {
		summary.Add(report.FixtureReport{
			ID:       v.FixtureID,
			Name:     v.Name,
			Pass:     v.Pass,
			Category: report.Category(v.Category),
			Details:  v.Details,
		})
	}
	return report.WriteText(w, summary, false)
}
