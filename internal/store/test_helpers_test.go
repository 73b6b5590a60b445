package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/kgbridge/internal/convert"
	"github.com/roach88/kgbridge/internal/dataset"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// sampleResult builds a three-example batch: the first converts on its
// second parse, the second on its first, the third not at all.
func sampleResult() *convert.BatchResult {
	out := "SELECT ?x\nWHERE {\n  wd:Q76 wdt:P27 ?x .\n}"

	tr := convert.NewTracker()
	tr.Record(convert.OutcomeNoEntityMapping)
	tr.Record(convert.OutcomeSuccess)
	tr.Record(convert.OutcomeSuccess)
	tr.Record(convert.OutcomeNoPropertyMapping)
	tr.MissingEntities.Add("0gap")
	tr.MissingRelations.Add("film.film.director")

	return &convert.BatchResult{
		Records: []dataset.Record{
			{Question: "a", SPARQL: &out},
			{Question: "b", SPARQL: &out},
			{Question: "c"},
		},
		Tracker: tr,
		Attempts: []convert.AttemptRecord{
			{Example: 0, Parse: 0, Attempt: convert.Attempt{
				QueryID: "q-gap",
				Outcome: convert.OutcomeNoEntityMapping,
				Err:     &convert.Error{Code: convert.OutcomeNoEntityMapping, Term: "http://rdf.freebase.com/ns/m.0gap", Message: `no entity mapping for "0gap"`},
			}},
			{Example: 0, Parse: 1, Attempt: convert.Attempt{QueryID: "q-obama", Output: out, Outcome: convert.OutcomeSuccess}},
			{Example: 1, Parse: 0, Attempt: convert.Attempt{QueryID: "q-obama", Output: out, Outcome: convert.OutcomeSuccess}},
			{Example: 2, Parse: 0, Attempt: convert.Attempt{
				QueryID: "q-director",
				Outcome: convert.OutcomeNoPropertyMapping,
				Err:     &convert.Error{Code: convert.OutcomeNoPropertyMapping, Term: "http://rdf.freebase.com/ns/film.film.director", Message: `no property mapping for "film.film.director"`},
			}},
		},
	}
}
