package report

import (
	"errors"

	"github.com/roach88/buildparity/internal/backend"
	"github.com/roach88/buildparity/internal/compare"
	"github.com/roach88/buildparity/internal/harness"
)

// Category names the kind of failure that decided a fixture's verdict.
type Category string

const (
	CategoryBuild      Category = "build"
	CategoryInspection Category = "inspection"
	CategoryExtraction Category = "extraction"
	CategoryConfig     Category = "config"
	CategoryFileTree   Category = "filetree"
	CategoryError      Category = "error"
)

// FixtureReport is the verdict for one fixture.
type FixtureReport struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Pass     bool     `json:"pass"`
	Category Category `json:"category,omitempty"`

	// Details lists every difference or failure message, one per line.
	Details []string `json:"details,omitempty"`

	// Log is the captured output of the failing invocation, if any.
	Log string `json:"log,omitempty"`

	CleanupWarnings []string `json:"cleanup_warnings,omitempty"`
}

// FromOutcome builds the report for a fixture outcome.
func FromOutcome(out *harness.Outcome) FixtureReport {
	r := FixtureReport{
		ID:   out.Fixture.ID,
		Name: out.Fixture.RelPath,
		Pass: out.Passed(),
	}
	for _, w := range out.CleanupWarnings {
		r.CleanupWarnings = append(r.CleanupWarnings, w.Error())
	}
	if r.Pass {
		return r
	}

	errs := out.Errors()
	if len(errs) == 0 {
		r.Category = CategoryError
		r.Details = []string{"fixture did not complete (state " + string(out.State) + ")"}
		return r
	}

	r.Category = categorize(errs[0])
	for _, err := range errs {
		r.Details = append(r.Details, details(err)...)
		if r.Log == "" {
			r.Log = logOf(err)
		}
	}
	return r
}

func categorize(err error) Category {
	var (
		bf *backend.BuildFailure
		ie *backend.InspectionError
		ee *backend.ExtractionError
		cm *compare.ConfigMismatch
		fm *compare.FileTreeMismatch
	)
	switch {
	case errors.As(err, &bf):
		return CategoryBuild
	case errors.As(err, &ie):
		return CategoryInspection
	case errors.As(err, &ee):
		return CategoryExtraction
	case errors.As(err, &cm):
		return CategoryConfig
	case errors.As(err, &fm):
		return CategoryFileTree
	default:
		return CategoryError
	}
}

// details expands a config mismatch into one line per field; every other
// error is a single line.
func details(err error) []string {
	var cm *compare.ConfigMismatch
	if errors.As(err, &cm) {
		lines := make([]string, len(cm.Diffs))
		for i, d := range cm.Diffs {
			lines[i] = d.String()
		}
		return lines
	}
	return []string{err.Error()}
}

func logOf(err error) string {
	var (
		bf *backend.BuildFailure
		ie *backend.InspectionError
		ee *backend.ExtractionError
	)
	switch {
	case errors.As(err, &bf):
		return bf.Log
	case errors.As(err, &ie):
		return ie.Log
	case errors.As(err, &ee):
		return ee.Log
	}
	return ""
}

// Summary aggregates fixture reports for one run.
type Summary struct {
	RunID    string          `json:"run_id,omitempty"`
	Fixtures []FixtureReport `json:"fixtures"`
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
	Total    int             `json:"total"`
}

// NewSummary returns an empty summary for a run.
func NewSummary(runID string) *Summary {
	return &Summary{RunID: runID, Fixtures: []FixtureReport{}}
}

// Add records a fixture report.
func (s *Summary) Add(r FixtureReport) {
	s.Fixtures = append(s.Fixtures, r)
	s.Total++
	if r.Pass {
		s.Passed++
	} else {
		s.Failed++
	}
}

// AllPassed reports whether every recorded fixture passed.
func (s *Summary) AllPassed() bool {
	return s.Failed == 0
}
