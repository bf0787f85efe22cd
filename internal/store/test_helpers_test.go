package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore opens a fresh database whose clock starts at a fixed time
// and advances one second per reading.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func testRunInfo() RunInfo {
	return RunInfo{
		FixturesDir: "/src/tests",
		Reference:   "/usr/bin/docker",
		Candidate:   "/usr/local/bin/docker-compile",
	}
}
