package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const runColumns = `id, input_path, output_path, started_at, status, finished_at, examples, converted, tally`

// GetRun returns a run by id. Returns an error wrapping ErrRunNotFound if
// the run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run ordered by start time, then id.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
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

// ReadAttempts returns the attempts of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no attempts.
func (s *Store) ReadAttempts(ctx context.Context, runID string) ([]AttemptRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, example, parse, query_id, outcome, detail
		FROM attempts
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	return collectAttempts(rows)
}

// AttemptsForQuery returns every attempt of the raw query with the given
// id across all runs, ordered by run start time, then seq.
func (s *Store) AttemptsForQuery(ctx context.Context, queryID string) ([]AttemptRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.run_id, a.seq, a.example, a.parse, a.query_id, a.outcome, a.detail
		FROM attempts a
		JOIN runs r ON a.run_id = r.id
		WHERE a.query_id = ?
		ORDER BY r.started_at ASC, a.run_id COLLATE BINARY ASC, a.seq ASC
	`, queryID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	return collectAttempts(rows)
}

func collectAttempts(rows *sql.Rows) ([]AttemptRow, error) {
	defer rows.Close()

	attempts := []AttemptRow{}
	for rows.Next() {
		var a AttemptRow
		if err := rows.Scan(&a.RunID, &a.Seq, &a.Example, &a.Parse, &a.QueryID, &a.Outcome, &a.Detail); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// ReadMissing returns the missing identifiers of one kind recorded for a
// run, sorted.
func (s *Store) ReadMissing(ctx context.Context, runID string, kind MissingKind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT local_id
		FROM missing_ids
		WHERE run_id = ? AND kind = ?
		ORDER BY local_id COLLATE BINARY ASC
	`, runID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query missing ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan missing id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missing ids: %w", err)
	}
	return ids, nil
}

// OutcomeCounts tallies a run's attempts by outcome from the attempts
// table. For a finished run it equals Run.Tally.
func (s *Store) OutcomeCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*)
		FROM attempts
		WHERE run_id = ?
		GROUP BY outcome
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}
	return counts, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
		status     string
		tallyJSON  string
	)
	err := row.Scan(&run.ID, &run.InputPath, &run.OutputPath, &startedAt, &status, &finishedAt, &run.Examples, &run.Converted, &tallyJSON)
	if err != nil {
		return Run{}, err
	}

	run.Status = RunStatus(status)
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if finishedAt.Valid {
		if run.FinishedAt, err = time.Parse(timeLayout, finishedAt.String); err != nil {
			return Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(tallyJSON), &run.Tally); err != nil {
		return Run{}, fmt.Errorf("unmarshal tally: %w", err)
	}
	return run, nil
}
