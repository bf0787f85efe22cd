package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/buildparity/internal/backend"
	"github.com/roach88/buildparity/internal/fixture"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Filter string
}

// FixtureListing describes a discovered fixture and the artifacts a run
// would build for it.
type FixtureListing struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Single bool          `json:"single"`
	Steps  []StepListing `json:"steps"`
}

// StepListing is one planned build step.
type StepListing struct {
	Index     int    `json:"index"`
	File      string `json:"file"`
	Reference string `json:"reference"`
	Candidate string `json:"candidate"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list [fixtures-dir]",
		Short: "List fixtures and the artifacts they would build",
		Long: `Discover fixtures without building anything.

Prints each fixture with its build steps and the artifact names the
reference and candidate backends would produce.

Examples:
  buildparity list ./tests
  buildparity list --filter "chain-*" --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return listFixtures(cmd, opts, dir)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter fixtures by glob pattern")

	return cmd
}

func listFixtures(cmd *cobra.Command, opts *ListOptions, dir string) error {
	f := opts.formatter(cmd)

	cfg, err := opts.loadConfig(f)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.Fixtures
	}

	fixtures, err := discover(f, dir, opts.Filter)
	if err != nil {
		return err
	}

	listings := make([]FixtureListing, 0, len(fixtures))
	for _, fx := range fixtures {
		listings = append(listings, listingOf(fx))
	}

	if f.JSON() {
		return f.Success(listings)
	}

	w := cmd.OutOrStdout()
	if len(listings) == 0 {
		fmt.Fprintln(w, "No fixtures found.")
		return nil
	}
	for _, l := range listings {
		kind := "single"
		if !l.Single {
			kind = fmt.Sprintf("chain, %d steps", len(l.Steps))
		}
		fmt.Fprintf(w, "%s (%s)\n", l.Name, kind)
		for _, s := range l.Steps {
			prefix := ""
			if !l.Single {
				prefix = fmt.Sprintf("%d ", s.Index)
			}
			fmt.Fprintf(w, "  %s%s -> %s\n", prefix, s.File, strings.Join([]string{s.Reference, s.Candidate}, ", "))
		}
	}
	fmt.Fprintf(w, "\n%d fixture(s)\n", len(listings))
	return nil
}

func listingOf(fx fixture.Fixture) FixtureListing {
	l := FixtureListing{ID: fx.ID, Name: fx.RelPath, Single: fx.Single}
	for _, step := range fx.Steps {
		l.Steps = append(l.Steps, StepListing{
			Index:     step.Index,
			File:      step.File,
			Reference: fx.ArtifactName(step.Index, backend.Reference.Tag()),
			Candidate: fx.ArtifactName(step.Index, backend.Candidate.Tag()),
		})
	}
	return l
}
