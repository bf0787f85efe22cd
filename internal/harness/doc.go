// Package harness runs build-parity fixtures end to end.
//
// For each fixture the harness drives both backends through the fixture's
// build chain, compares the final artifacts, and removes every artifact it
// created. A fixture moves through these states:
//
//	pending -> running(step 0) -> running(step 1) -> ... -> completed
//	                  \                   \
//	                   +-------------------+--> failed
//
// Step N of a backend is built on top of that same backend's step N-1
// artifact: the reference chain and the candidate chain never share images.
// Single-step fixtures run one step with no base override and skip chain
// bookkeeping entirely.
//
// # Failure handling
//
// A build failure on either backend ends the fixture in the failed state and
// no comparison is attempted. Inspection and extraction errors also fail the
// fixture. Configuration and file-tree mismatches are accumulated into the
// comparison result so one run shows the whole difference.
//
// Errors that mean the environment itself is broken (a backend binary that
// cannot be started, a cancelled run) are returned from RunFixture instead of
// being recorded on the outcome; callers abort the whole run on them.
//
// Cleanup of registered artifacts runs on every exit path, including panics.
//
// # Usage
//
//	driver := backend.NewDriver(backend.ExecRunner{}, cfg, logger)
//	h := harness.New(driver, harness.Options{ResultsRoot: "results", ExtractResults: true}, logger)
//	outcome, err := h.RunFixture(ctx, fx)
package harness
