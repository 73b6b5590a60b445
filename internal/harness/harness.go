package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/kgbridge/internal/convert"
	"github.com/roach88/kgbridge/internal/dataset"
	"github.com/roach88/kgbridge/internal/mapping"
	"github.com/roach88/kgbridge/internal/store"
	"github.com/roach88/kgbridge/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Run ids are
// "<name>-0001" and timestamps start at testutil.Epoch, so everything read
// back from the store is reproducible.
//
// A returned error means the scenario could not be executed; failed
// expectations and assertions are reported in Result.Errors instead.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	// Fresh run log per scenario
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	// Build the converter from the scenario's inline tables
	tables := &mapping.Tables{
		Entities:  mapping.NewTable(scenario.Entities),
		Relations: mapping.NewTable(scenario.Relations),
	}
	var opts []convert.Option
	if scenario.Namespaces != nil {
		opts = append(opts, convert.WithNamespaces(*scenario.Namespaces))
	}
	conv, err := convert.New(tables, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create converter: %w", err)
	}

	// Convert examples
	examples := make([]dataset.Example, len(scenario.Examples))
	for i, ex := range scenario.Examples {
		examples[i] = dataset.Example{
			ID:       fmt.Sprintf("%s-%d", scenario.Name, i),
			Question: ex.Question,
			Parses:   ex.Parses,
		}
	}

	recorder := store.NewRecorder(st, testutil.NewSequentialIDGenerator(scenario.Name), testutil.NewDeterministicClock())
	runID, err := recorder.BeginRun(ctx, scenario.Name, "")
	if err != nil {
		return nil, err
	}

	batch, err := convert.RunBatch(ctx, conv, examples, convert.BatchOptions{Workers: scenario.Workers})
	if err != nil {
		return nil, fmt.Errorf("failed to run batch: %w", err)
	}
	if err := recorder.FinishRun(ctx, runID, batch); err != nil {
		return nil, err
	}

	// Read back and check
	result, err := readResult(ctx, st, runID, batch)
	if err != nil {
		return nil, err
	}

	for i, ex := range scenario.Examples {
		for _, msg := range checkExpect(i, ex.Expect, result.Records[i]) {
			result.AddError(msg)
		}
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// readResult builds the result from the run log, so the snapshot reflects
// what was persisted rather than the in-memory batch.
func readResult(ctx context.Context, st *store.Store, runID string, batch *convert.BatchResult) (*Result, error) {
	result := NewResult()
	result.RunID = runID

	for _, rec := range batch.Records {
		result.Records = append(result.Records, RecordTrace{Question: rec.Question, SPARQL: rec.SPARQL})
	}

	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	for k, v := range run.Tally {
		result.Tally[k] = v
	}

	attempts, err := st.ReadAttempts(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, a := range attempts {
		result.Trace = append(result.Trace, AttemptTrace{
			Seq:     a.Seq,
			Example: a.Example,
			Parse:   a.Parse,
			Outcome: a.Outcome,
		})
	}

	if result.MissingEntities, err = st.ReadMissing(ctx, runID, store.KindEntity); err != nil {
		return nil, err
	}
	if result.MissingRelations, err = st.ReadMissing(ctx, runID, store.KindRelation); err != nil {
		return nil, err
	}
	return result, nil
}

// checkExpect validates one example's record against its expect clause.
func checkExpect(index int, expect *ExpectClause, rec RecordTrace) []string {
	if expect == nil {
		return nil
	}

	converted := rec.SPARQL != nil
	if converted != expect.Converted {
		return []string{fmt.Sprintf("examples[%d]: converted = %t, want %t", index, converted, expect.Converted)}
	}
	if !converted {
		return nil
	}

	out := *rec.SPARQL
	var errs []string
	if expect.SPARQL != "" && strings.TrimSpace(expect.SPARQL) != out {
		errs = append(errs, fmt.Sprintf("examples[%d]: sparql mismatch\n  Expected:\n%s\n  Actual:\n%s", index, expect.SPARQL, out))
	}
	for _, s := range expect.Contains {
		if !strings.Contains(out, s) {
			errs = append(errs, fmt.Sprintf("examples[%d]: output does not contain %q", index, s))
		}
	}
	for _, s := range expect.NotContains {
		if strings.Contains(out, s) {
			errs = append(errs, fmt.Sprintf("examples[%d]: output contains %q", index, s))
		}
	}
	return errs
}
