package convert

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/kgbridge/internal/dataset"
)

// Attempter converts one query, recording into tr. *Converter implements it.
type Attempter interface {
	Attempt(query string, tr *Tracker) Attempt
}

// BatchOptions controls RunBatch.
type BatchOptions struct {
	// Workers is the number of goroutines converting examples. Values
	// below 2 run the batch sequentially.
	Workers int
}

// AttemptRecord is one attempted (example, parse) pair.
type AttemptRecord struct {
	Example int
	Parse   int
	Attempt
}

// BatchResult is the outcome of a batch.
type BatchResult struct {
	// Records holds one record per example, in input order.
	Records []dataset.Record

	// Tracker holds the tally and missing identifiers for the whole batch.
	Tracker *Tracker

	// Attempts lists every attempted parse ordered by example, then parse.
	// Parses after an example's first success are never attempted and do
	// not appear.
	Attempts []AttemptRecord
}

// Converted returns the number of examples with a converted query.
func (r *BatchResult) Converted() int {
	n := 0
	for _, rec := range r.Records {
		if rec.SPARQL != nil {
			n++
		}
	}
	return n
}

// RunBatch converts every example. For each example the candidate parses are
// tried in order and the first success is kept; the rest are skipped. An
// example with no successful parse gets a nil SPARQL.
//
// With Workers > 1 examples are split into contiguous shards, each converted
// with its own Tracker; the trackers are merged once all shards finish.
// Cancelling ctx stops new examples from being started and RunBatch returns
// the context error.
func RunBatch(ctx context.Context, conv Attempter, examples []dataset.Example, opts BatchOptions) (*BatchResult, error) {
	result := &BatchResult{
		Records: make([]dataset.Record, len(examples)),
		Tracker: NewTracker(),
	}

	workers := opts.Workers
	if workers > len(examples) {
		workers = len(examples)
	}
	if workers < 2 {
		attempts, err := runShard(ctx, conv, examples, 0, len(examples), result.Records, result.Tracker)
		if err != nil {
			return nil, err
		}
		result.Attempts = attempts
		logSummary(result, len(examples))
		return result, nil
	}

	trackers := make([]*Tracker, workers)
	shardAttempts := make([][]AttemptRecord, workers)
	g, gctx := errgroup.WithContext(ctx)
	size := (len(examples) + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * size
		end := min(start+size, len(examples))
		trackers[w] = NewTracker()
		g.Go(func() error {
			attempts, err := runShard(gctx, conv, examples, start, end, result.Records, trackers[w])
			shardAttempts[w] = attempts
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for w := range trackers {
		result.Tracker.Merge(trackers[w])
		result.Attempts = append(result.Attempts, shardAttempts[w]...)
	}
	sort.SliceStable(result.Attempts, func(i, j int) bool {
		a, b := result.Attempts[i], result.Attempts[j]
		if a.Example != b.Example {
			return a.Example < b.Example
		}
		return a.Parse < b.Parse
	})

	logSummary(result, len(examples))
	return result, nil
}

// runShard converts examples[start:end], writing into records at the same
// indexes.
func runShard(ctx context.Context, conv Attempter, examples []dataset.Example, start, end int, records []dataset.Record, tr *Tracker) ([]AttemptRecord, error) {
	var attempts []AttemptRecord
	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}
		ex := examples[i]
		rec := dataset.Record{Question: ex.Question}

		for j, parse := range ex.Parses {
			a := conv.Attempt(parse, tr)
			attempts = append(attempts, AttemptRecord{Example: i, Parse: j, Attempt: a})
			if a.OK() {
				out := a.Output
				rec.SPARQL = &out
				break
			}
		}

		if rec.SPARQL == nil {
			slog.Debug("example not converted", "example", i, "id", ex.ID, "parses", len(ex.Parses))
		}
		records[i] = rec
	}
	return attempts, nil
}

func logSummary(r *BatchResult, examples int) {
	slog.Info("batch complete",
		"examples", examples,
		"converted", r.Converted(),
		"attempts", len(r.Attempts),
		"missing_entities", len(r.Tracker.MissingEntities),
		"missing_relations", len(r.Tracker.MissingRelations),
	)
}
