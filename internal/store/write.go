package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/kgbridge/internal/convert"
)

// Recorder writes conversion runs into a Store.
type Recorder struct {
	store *Store
	ids   IDGenerator
	clock Clock
}

// NewRecorder creates a recorder. A nil ids uses UUIDv7Generator and a nil
// clock uses SystemClock.
func NewRecorder(s *Store, ids IDGenerator, clock Clock) *Recorder {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Recorder{store: s, ids: ids, clock: clock}
}

// BeginRun opens a run for the given input and output paths and returns
// its id.
func (r *Recorder) BeginRun(ctx context.Context, inputPath, outputPath string) (string, error) {
	run := Run{
		ID:         r.ids.Generate(),
		InputPath:  inputPath,
		OutputPath: outputPath,
		StartedAt:  r.clock.Now(),
	}
	if err := r.store.WriteRun(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}

// FinishRun records the batch result against an open run and closes it.
func (r *Recorder) FinishRun(ctx context.Context, runID string, result *convert.BatchResult) error {
	return r.store.CompleteRun(ctx, runID, r.clock.Now(), result)
}

// AbortRun closes an open run without recording attempts, for a batch that
// was interrupted or whose output could not be written.
func (r *Recorder) AbortRun(ctx context.Context, runID string) error {
	return r.store.AbortRun(ctx, runID, r.clock.Now())
}

// WriteRun inserts an open run row.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, input_path, output_path, started_at)
		VALUES (?, ?, ?, ?)
	`,
		run.ID,
		run.InputPath,
		run.OutputPath,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// CompleteRun writes the attempts and missing identifiers of result and
// closes the run, all in one transaction. Attempts get seq numbers from 1
// in result order. Returns ErrRunNotFound or ErrRunClosed when the run is
// absent or already finished.
func (s *Store) CompleteRun(ctx context.Context, runID string, finishedAt time.Time, result *convert.BatchResult) error {
	tallyJSON, err := json.Marshal(result.Tracker.Tally)
	if err != nil {
		return fmt.Errorf("complete run: marshal tally: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("complete run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		UPDATE runs
		SET status = 'finished', finished_at = ?, examples = ?, converted = ?, tally = ?
		WHERE id = ? AND status = 'open'
	`,
		formatTime(finishedAt),
		len(result.Records),
		result.Converted(),
		string(tallyJSON),
		runID,
	)
	if err != nil {
		return fmt.Errorf("complete run: update: %w", err)
	}
	if err := checkClosed(ctx, tx, res, "complete run", runID); err != nil {
		return err
	}

	attemptStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attempts (run_id, seq, example, parse, query_id, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("complete run: prepare attempts: %w", err)
	}
	defer attemptStmt.Close()

	for i, a := range result.Attempts {
		detail := ""
		if a.Err != nil {
			detail = a.Err.Error()
		}
		_, err := attemptStmt.ExecContext(ctx, runID, i+1, a.Example, a.Parse, a.QueryID, string(a.Outcome), detail)
		if err != nil {
			return fmt.Errorf("complete run: insert attempt %d: %w", i+1, err)
		}
	}

	if err := insertMissing(ctx, tx, runID, KindEntity, result.Tracker.MissingEntities.Sorted()); err != nil {
		return err
	}
	if err := insertMissing(ctx, tx, runID, KindRelation, result.Tracker.MissingRelations.Sorted()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("complete run: commit: %w", err)
	}
	return nil
}

// AbortRun marks an open run aborted at abortedAt. The run keeps no
// attempts, so its counts stay zero. Returns ErrRunNotFound or ErrRunClosed
// like CompleteRun.
func (s *Store) AbortRun(ctx context.Context, runID string, abortedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("abort run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		UPDATE runs
		SET status = 'aborted', finished_at = ?
		WHERE id = ? AND status = 'open'
	`, formatTime(abortedAt), runID)
	if err != nil {
		return fmt.Errorf("abort run: update: %w", err)
	}
	if err := checkClosed(ctx, tx, res, "abort run", runID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("abort run: commit: %w", err)
	}
	return nil
}

// checkClosed turns an UPDATE of an open run that matched no row into
// ErrRunNotFound or ErrRunClosed.
func checkClosed(ctx context.Context, tx *sql.Tx, res sql.Result, op, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return fmt.Errorf("%s: lookup: %w", op, err)
	}
	if exists == 0 {
		return fmt.Errorf("%s %s: %w", op, runID, ErrRunNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, runID, ErrRunClosed)
}

func insertMissing(ctx context.Context, tx *sql.Tx, runID string, kind MissingKind, ids []string) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO missing_ids (run_id, kind, local_id)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("complete run: prepare missing: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, runID, string(kind), id); err != nil {
			return fmt.Errorf("complete run: insert missing %s %q: %w", kind, id, err)
		}
	}
	return nil
}
