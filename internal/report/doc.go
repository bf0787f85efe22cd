// Package report turns fixture outcomes into per-fixture verdicts and
// renders them.
//
// A FixtureReport is the reportable view of one harness.Outcome: whether it
// passed, the first failing category, and every difference found. Reports
// render as ✓/✗ text lines with a closing summary, or as JSON.
//
// Suite exposes the same verdicts to the go test runner, one subtest per
// fixture:
//
//	func TestParity(t *testing.T) {
//		report.Suite(t, h, fixtures)
//	}
package report
