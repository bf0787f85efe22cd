package report

import (
	"testing"

	"github.com/roach88/buildparity/internal/fixture"
	"github.com/roach88/buildparity/internal/harness"
)

// Suite runs every fixture as a subtest of t named after the fixture ID. A
// fixture that is not equivalent fails its subtest with one error per
// difference; a run-fatal error fails the subtest and stops the suite.
func Suite(t *testing.T, h *harness.Harness, fixtures []fixture.Fixture) {
	t.Helper()

	for _, f := range fixtures {
		fatal := false
		t.Run(f.ID, func(t *testing.T) {
			out, err := h.RunFixture(t.Context(), f)
			if err != nil {
				fatal = true
				t.Fatalf("run aborted: %v", err)
			}

			r := FromOutcome(out)
			for _, w := range r.CleanupWarnings {
				t.Logf("warning: %s", w)
			}
			if r.Pass {
				return
			}
			for _, d := range r.Details {
				t.Errorf("%s: %s", r.Category, d)
			}
			if r.Log != "" {
				t.Logf("log:\n%s", r.Log)
			}
		})
		if fatal {
			return
		}
	}
}
