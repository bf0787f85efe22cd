package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrRunNotFound is returned when no run matches an identifier.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousRun is returned when an identifier prefix matches more than
// one run.
var ErrAmbiguousRun = errors.New("run identifier is ambiguous")

// RunInfo describes the inputs of a run.
type RunInfo struct {
	FixturesDir string
	Reference   string
	Candidate   string
}

// Run is one recorded harness run.
type Run struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Status      string     `json:"status"`
	FixturesDir string     `json:"fixtures_dir"`
	Reference   string     `json:"reference"`
	Candidate   string     `json:"candidate"`
	Passed      int        `json:"passed"`
	Failed      int        `json:"failed"`
	Total       int        `json:"total"`
}

// Verdict is the stored result of one fixture within a run.
type Verdict struct {
	FixtureID string   `json:"fixture_id"`
	Name      string   `json:"name"`
	Pass      bool     `json:"pass"`
	Category  string   `json:"category,omitempty"`
	Details   []string `json:"details,omitempty"`
}

// BeginRun records the start of a run and returns it with a fresh UUIDv7
// identifier.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (Run, error) {
	run := Run{
		ID:          uuid.Must(uuid.NewV7()).String(),
		StartedAt:   s.now().UTC(),
		Status:      StatusRunning,
		FixturesDir: info.FixturesDir,
		Reference:   info.Reference,
		Candidate:   info.Candidate,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, status, fixtures_dir, reference, candidate)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.Format(timeLayout),
		run.Status,
		run.FixturesDir,
		run.Reference,
		run.Candidate,
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// RecordVerdict appends a fixture verdict to a run. Recording the same
// fixture twice for one run is an error.
func (s *Store) RecordVerdict(ctx context.Context, runID string, v Verdict) error {
	details := v.Details
	if details == nil {
		details = []string{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("record verdict: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verdicts (run_id, seq, fixture_id, fixture_name, pass, category, details)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?
		FROM verdicts WHERE run_id = ?
	`,
		runID,
		v.FixtureID,
		v.Name,
		v.Pass,
		v.Category,
		string(detailsJSON),
		runID,
	)
	if err != nil {
		return fmt.Errorf("record verdict: %w", err)
	}
	return nil
}

// FinishRun marks a run with its final status and stores the totals of its
// recorded verdicts.
func (s *Store) FinishRun(ctx context.Context, runID, status string) (Run, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?,
			status = ?,
			passed = (SELECT COUNT(*) FROM verdicts WHERE run_id = runs.id AND pass = 1),
			failed = (SELECT COUNT(*) FROM verdicts WHERE run_id = runs.id AND pass = 0),
			total  = (SELECT COUNT(*) FROM verdicts WHERE run_id = runs.id)
		WHERE id = ?
	`,
		s.now().UTC().Format(timeLayout),
		status,
		runID,
	)
	if err != nil {
		return Run{}, fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Run{}, fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return Run{}, fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return s.FindRun(ctx, runID)
}

const runColumns = `id, started_at, finished_at, status, fixtures_dir, reference, candidate, passed, failed, total`

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// FindRun returns the run whose identifier is, or starts with, id.
func (s *Store) FindRun(ctx context.Context, id string) (Run, error) {
	if id == "" {
		return Run{}, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE substr(id, 1, ?) = ?
		ORDER BY id
		LIMIT 2
	`, len(id), id)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate runs: %w", err)
	}

	switch {
	case len(found) == 0:
		return Run{}, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	case len(found) > 1 && found[0].ID != id:
		return Run{}, fmt.Errorf("%s: %w", id, ErrAmbiguousRun)
	}
	return found[0], nil
}

// Verdicts returns a run's verdicts in recording order. The slice is empty,
// not nil, when the run has none.
func (s *Store) Verdicts(ctx context.Context, runID string) ([]Verdict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fixture_id, fixture_name, pass, category, details
		FROM verdicts
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	verdicts := []Verdict{}
	for rows.Next() {
		var (
			v       Verdict
			details string
		)
		if err := rows.Scan(&v.FixtureID, &v.Name, &v.Pass, &v.Category, &details); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &v.Details); err != nil {
			return nil, fmt.Errorf("decode verdict details: %w", err)
		}
		if len(v.Details) == 0 {
			v.Details = nil
		}
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdicts: %w", err)
	}
	return verdicts, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
	)
	err := rows.Scan(
		&run.ID,
		&started,
		&finished,
		&run.Status,
		&run.FixturesDir,
		&run.Reference,
		&run.Candidate,
		&run.Passed,
		&run.Failed,
		&run.Total,
	)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.StartedAt, err = time.Parse(timeLayout, started)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	return run, nil
}
