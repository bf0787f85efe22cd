package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the deterministic, comparable view of an Outcome.
type TraceSnapshot struct {
	Fixture string       `json:"fixture"`
	State   State        `json:"state"`
	Passed  bool         `json:"passed"`
	Trace   []TraceEvent `json:"trace"`
}

// Snapshot builds the trace snapshot of an outcome.
func Snapshot(out *Outcome) TraceSnapshot {
	return TraceSnapshot{
		Fixture: out.Fixture.ID,
		State:   out.State,
		Passed:  out.Passed(),
		Trace:   out.Trace,
	}
}

// MarshalSnapshot renders a snapshot as indented JSON with a trailing
// newline.
func MarshalSnapshot(s TraceSnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// AssertGolden compares an outcome's trace snapshot against the golden file
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, out *Outcome) error {
	t.Helper()

	data, err := MarshalSnapshot(Snapshot(out))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
