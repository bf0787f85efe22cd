// Package backend drives the two build backends under comparison.
//
// Both the reference engine and the candidate compiler are opaque executables.
// The Driver turns build, inspect, extract and remove requests into
// subprocess invocations through a Runner, captures their combined output,
// and surfaces failures as typed errors:
//
//   - BuildFailure: a backend exited non-zero (or timed out) while building.
//   - InspectionError: artifact metadata was missing or malformed.
//   - ExtractionError: copying /results out of an artifact failed.
//   - EnvironmentError: a command could not be started at all. This points at
//     a broken installation rather than a build difference and callers treat
//     it as fatal for the whole run.
//
// Base-image overrides never touch the checked-in build definition: the
// rewritten definition is written to a temporary file that is removed when
// the build returns.
package backend
