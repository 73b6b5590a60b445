package store

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// ErrRunClosed is returned when closing a run that is already finished or
// aborted.
var ErrRunClosed = errors.New("run already finished")

// MissingKind distinguishes the two missing-identifier reports.
type MissingKind string

const (
	KindEntity   MissingKind = "entity"
	KindRelation MissingKind = "relation"
)

// RunStatus is the lifecycle state of a run. A run starts open and is
// closed exactly once, as finished or aborted.
type RunStatus string

const (
	StatusOpen     RunStatus = "open"
	StatusFinished RunStatus = "finished"
	StatusAborted  RunStatus = "aborted"
)

// Run is one conversion run.
type Run struct {
	ID         string
	InputPath  string
	OutputPath string
	StartedAt  time.Time
	Status     RunStatus

	// FinishedAt is zero while the run is open. For an aborted run it is
	// the time of the abort.
	FinishedAt time.Time

	Examples  int
	Converted int

	// Tally maps outcome name to count. Empty while the run is open.
	Tally map[string]int
}

// Finished reports whether the run completed and its attempts were
// recorded.
func (r Run) Finished() bool {
	return r.Status == StatusFinished
}

// AttemptRow is one attempted (example, parse) pair of a run.
type AttemptRow struct {
	RunID   string
	Seq     int64
	Example int
	Parse   int
	QueryID string
	Outcome string

	// Detail is the failure message; empty on success.
	Detail string
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
