package compare

import (
	"fmt"
	"strings"
)

// ConfigMismatch reports every configuration field that differed.
type ConfigMismatch struct {
	Diffs []FieldDiff
}

// Error implements the error interface.
func (e *ConfigMismatch) Error() string {
	fields := make([]string, len(e.Diffs))
	for i, d := range e.Diffs {
		fields[i] = d.Field
	}
	return fmt.Sprintf("config mismatch on %s", strings.Join(fields, ", "))
}

// FileTreeMismatch reports every file that differed between result trees.
type FileTreeMismatch struct {
	Diff TreeDiff
}

// Error implements the error interface.
func (e *FileTreeMismatch) Error() string {
	var parts []string
	if len(e.Diff.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing from candidate: %s", strings.Join(e.Diff.Missing, ", ")))
	}
	if len(e.Diff.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("extra in candidate: %s", strings.Join(e.Diff.Extra, ", ")))
	}
	if len(e.Diff.Differ) > 0 {
		parts = append(parts, fmt.Sprintf("content differs: %s", strings.Join(e.Diff.Differ, ", ")))
	}
	return "file tree mismatch: " + strings.Join(parts, "; ")
}

// Result is the equivalence verdict for one fixture's final artifacts.
type Result struct {
	FixtureID   string      `json:"fixture_id"`
	ConfigDiffs []FieldDiff `json:"config_diffs,omitempty"`
	Tree        TreeDiff    `json:"tree"`
	Passed      bool        `json:"passed"`
}

// NewResult assembles a Result from both checks.
func NewResult(fixtureID string, configDiffs []FieldDiff, tree TreeDiff) *Result {
	return &Result{
		FixtureID:   fixtureID,
		ConfigDiffs: configDiffs,
		Tree:        tree,
		Passed:      len(configDiffs) == 0 && tree.Empty(),
	}
}

// Errors returns the mismatches as typed errors, config first.
func (r *Result) Errors() []error {
	var errs []error
	if len(r.ConfigDiffs) > 0 {
		errs = append(errs, &ConfigMismatch{Diffs: r.ConfigDiffs})
	}
	if !r.Tree.Empty() {
		errs = append(errs, &FileTreeMismatch{Diff: r.Tree})
	}
	return errs
}
