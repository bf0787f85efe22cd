package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WriteFixture writes the text verdict line for one fixture, followed by
// its details and cleanup warnings. With verbose set, the failing
// invocation's log is included.
func WriteFixture(w io.Writer, r FixtureReport, verbose bool) error {
	var b strings.Builder
	if r.Pass {
		fmt.Fprintf(&b, "✓ %s\n", r.Name)
	} else {
		fmt.Fprintf(&b, "✗ %s (%s)\n", r.Name, r.Category)
	}
	for _, d := range r.Details {
		fmt.Fprintf(&b, "  %s\n", d)
	}
	if verbose && r.Log != "" {
		b.WriteString("  log:\n")
		for _, line := range strings.Split(strings.TrimRight(r.Log, "\n"), "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	for _, warn := range r.CleanupWarnings {
		fmt.Fprintf(&b, "  warning: %s\n", warn)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteSummary writes the closing summary block.
func WriteSummary(w io.Writer, s *Summary) error {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "Test Summary: %d passed, %d failed, %d total\n", s.Passed, s.Failed, s.Total)
	if s.Total > 0 && s.AllPassed() {
		b.WriteString("✓ All fixtures passed\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteText renders every fixture and the summary.
func WriteText(w io.Writer, s *Summary, verbose bool) error {
	for _, r := range s.Fixtures {
		if err := WriteFixture(w, r, verbose); err != nil {
			return err
		}
	}
	return WriteSummary(w, s)
}

// WriteJSON renders the summary as indented JSON.
func WriteJSON(w io.Writer, s *Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
