package harness

import (
	"github.com/roach88/buildparity/internal/backend"
	"github.com/roach88/buildparity/internal/cleanup"
	"github.com/roach88/buildparity/internal/compare"
	"github.com/roach88/buildparity/internal/fixture"
)

// State is a fixture's position in the chain state machine.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateFailed    State = "failed"
	StateCompleted State = "completed"
)

// Trace event types.
const (
	EventBuild   = "build"
	EventInspect = "inspect"
	EventExtract = "extract"
	EventCleanup = "cleanup"
)

// TraceEvent records one external operation performed for a fixture.
type TraceEvent struct {
	Type     string `json:"type"`
	Step     int    `json:"step"`
	Backend  string `json:"backend,omitempty"`
	Artifact string `json:"artifact"`
	Base     string `json:"base,omitempty"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

// Outcome is everything observed while running one fixture.
type Outcome struct {
	Fixture fixture.Fixture
	State   State

	// Trace lists operations in execution order. Builds of the same step
	// are recorded in backend order even when they ran concurrently.
	Trace []TraceEvent

	// Reference and Candidate are the final-step artifacts, set only when
	// the chain completed.
	Reference *backend.Artifact
	Candidate *backend.Artifact

	// Comparison is set only when both final builds succeeded and both
	// artifacts could be inspected.
	Comparison *compare.Result

	// Failure is the error that stopped the fixture before or during
	// comparison: *backend.BuildFailure, *backend.InspectionError,
	// *backend.ExtractionError, or an unexpected fixture-local error.
	Failure error

	// CleanupWarnings lists artifacts that could not be removed.
	CleanupWarnings []cleanup.Warning

	// ResultsDir holds the truth and question extraction directories.
	ResultsDir string
}

// Passed reports whether the fixture completed with equivalent artifacts.
func (o *Outcome) Passed() bool {
	return o.State == StateCompleted && o.Failure == nil && o.Comparison != nil && o.Comparison.Passed
}

// Errors returns every failure of the fixture: the stopping failure, or the
// accumulated comparison mismatches.
func (o *Outcome) Errors() []error {
	if o.Failure != nil {
		return []error{o.Failure}
	}
	if o.Comparison != nil {
		return o.Comparison.Errors()
	}
	return nil
}

func (o *Outcome) addEvent(e TraceEvent) {
	o.Trace = append(o.Trace, e)
}
